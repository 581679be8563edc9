/*
Package preprocess prepares an uploaded product photo for price recognition.

Prices sit in a predictable corner of these photos, so instead of feeding
the whole image to an OCR engine we cut out the region of interest and
stretch its contrast. Both steps are pure transforms over decoded pixel
buffers; the source image is never modified.
*/
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"poster-editor/src/pkg/util"
)

// ErrDecode marks input that cannot be interpreted as an image.
var ErrDecode = errors.New("image decode failed")

/*
ROIPolicy selects the region of interest as resolution-independent
fractions of the source dimensions. The default is the lower-left cell of
a 3x2 grid over the photo, where this product catalog prints its prices.

Fractional sizes are floored and clamped to [1px, source dimension];
offsets are ceiled, then pulled back so the region never leaves the
source. With YFrac+HeightFrac == 1 the region hugs the bottom edge
exactly, matching a crop at height-regionHeight.
*/
type ROIPolicy struct {
	XFrac      float64 `json:"x_frac"`
	YFrac      float64 `json:"y_frac"`
	WidthFrac  float64 `json:"width_frac"`
	HeightFrac float64 `json:"height_frac"`
}

// DefaultROIPolicy returns the lower-left 1/6 cell of a 3x2 grid.
func DefaultROIPolicy() ROIPolicy {
	return ROIPolicy{XFrac: 0, YFrac: 0.5, WidthFrac: 1.0 / 3.0, HeightFrac: 0.5}
}

// Region computes the crop rectangle for a source of the given size.
// The result depends on the source dimensions only.
func (p ROIPolicy) Region(sourceWidth, sourceHeight int) image.Rectangle {
	widthFrac := util.ClampFraction(p.WidthFrac)
	heightFrac := util.ClampFraction(p.HeightFrac)

	regionWidth := util.Clamp(int(math.Floor(float64(sourceWidth)*widthFrac)), 1, sourceWidth)
	regionHeight := util.Clamp(int(math.Floor(float64(sourceHeight)*heightFrac)), 1, sourceHeight)

	x := util.Clamp(int(math.Ceil(float64(sourceWidth)*util.ClampFraction(p.XFrac))), 0, sourceWidth-regionWidth)
	y := util.Clamp(int(math.Ceil(float64(sourceHeight)*util.ClampFraction(p.YFrac))), 0, sourceHeight-regionHeight)

	return image.Rect(x, y, x+regionWidth, y+regionHeight)
}

/*
Decode turns an encoded image blob (PNG/JPEG/GIF...) into a pixel buffer.

It fails with an error wrapping ErrDecode when the blob is not a valid
image, which callers treat as fatal for that single item only.
*/
func Decode(blob []byte) (img image.Image, err error) {
	decoded, decodeErr := imaging.Decode(bytes.NewReader(blob))
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, decodeErr)
	}
	return decoded, nil
}

/*
CropAndEnhance cuts the policy's region out of the source and applies a
linear contrast stretch: clamp(factor*(v-128)+128) per RGB channel, alpha
untouched. A factor of 1.0 leaves every pixel as-is; factors above 1.0
spread values away from the midpoint.

The returned buffer is a new image; the source is left intact.
*/
func CropAndEnhance(source image.Image, policy ROIPolicy, contrastFactor float64) *image.NRGBA {
	bounds := source.Bounds()
	region := policy.Region(bounds.Dx(), bounds.Dy()).Add(bounds.Min)

	cropped := imaging.Crop(source, region)

	tl.Log(
		tl.Verbose, palette.CyanDim, "Cropped ROI '%s' out of '%s'",
		fmt.Sprintf("%dx%d", cropped.Bounds().Dx(), cropped.Bounds().Dy()),
		fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
	)

	return imaging.AdjustFunc(cropped, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: stretchChannel(c.R, contrastFactor),
			G: stretchChannel(c.G, contrastFactor),
			B: stretchChannel(c.B, contrastFactor),
			A: c.A,
		}
	})
}

/*
CropAndEnhanceBlob is the blob-to-blob convenience used by the OCR gateway:
decode, crop, enhance, re-encode as PNG for the recognition backends.
*/
func CropAndEnhanceBlob(blob []byte, policy ROIPolicy, contrastFactor float64) (png []byte, err error) {
	source, err := Decode(blob)
	if err != nil {
		return nil, err
	}

	enhanced := CropAndEnhance(source, policy, contrastFactor)

	var buf bytes.Buffer
	encodeErr := imaging.Encode(&buf, enhanced, imaging.PNG)
	if encodeErr != nil {
		return nil, fmt.Errorf("encode enhanced region: %w", encodeErr)
	}

	return buf.Bytes(), nil
}

func stretchChannel(v uint8, factor float64) uint8 {
	stretched := factor*(float64(v)-128.0) + 128.0
	return uint8(util.Clamp(math.Round(stretched), 0, 255))
}
