package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestRegionStaysInsideSourceBounds(t *testing.T) {
	policy := DefaultROIPolicy()

	sizes := [][2]int{{1, 1}, {2, 3}, {3, 2}, {10, 10}, {99, 7}, {640, 480}, {1920, 1080}}
	for _, size := range sizes {
		region := policy.Region(size[0], size[1])

		if region.Dx() < 1 || region.Dx() > size[0] {
			t.Fatalf("source %dx%d: region width %d out of range", size[0], size[1], region.Dx())
		}
		if region.Dy() < 1 || region.Dy() > size[1] {
			t.Fatalf("source %dx%d: region height %d out of range", size[0], size[1], region.Dy())
		}
		if region.Min.X < 0 || region.Min.Y < 0 || region.Max.X > size[0] || region.Max.Y > size[1] {
			t.Fatalf("source %dx%d: region %v leaves the source", size[0], size[1], region)
		}
	}
}

func TestRegionIsDeterministic(t *testing.T) {
	policy := DefaultROIPolicy()
	first := policy.Region(640, 480)
	for i := 0; i < 10; i++ {
		if got := policy.Region(640, 480); got != first {
			t.Fatalf("Region() = %v on repeat call, want %v", got, first)
		}
	}
}

func TestRegionHugsTheBottomEdge(t *testing.T) {
	// The default policy is the lower-left cell of a 3x2 grid; the crop
	// must reach the bottom edge even when the height is odd.
	policy := DefaultROIPolicy()
	region := policy.Region(300, 201)

	if region.Max.Y != 201 {
		t.Fatalf("region %v does not reach the bottom edge", region)
	}
	if region.Min.X != 0 {
		t.Fatalf("region %v does not start at the left edge", region)
	}
	if region.Dx() != 100 || region.Dy() != 100 {
		t.Fatalf("region %v is not the floor-rounded 1/6 cell", region)
	}
}

func TestContrastFactorOneIsIdentity(t *testing.T) {
	source := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			source.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}

	identityPolicy := ROIPolicy{XFrac: 0, YFrac: 0, WidthFrac: 1, HeightFrac: 1}
	out := CropAndEnhance(source, identityPolicy, 1.0)

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if got, want := out.NRGBAAt(x, y), source.NRGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestContrastIncreasesSpread(t *testing.T) {
	// Two mid-range values on either side of the midpoint: a higher factor
	// must push them further apart, without hitting the clamp.
	source := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	source.SetNRGBA(0, 0, color.NRGBA{R: 118, G: 118, B: 118, A: 255})
	source.SetNRGBA(1, 0, color.NRGBA{R: 138, G: 138, B: 138, A: 255})

	identityPolicy := ROIPolicy{XFrac: 0, YFrac: 0, WidthFrac: 1, HeightFrac: 1}

	previousSpread := -1
	for _, factor := range []float64{1.0, 1.5, 2.0, 3.0} {
		out := CropAndEnhance(source, identityPolicy, factor)
		spread := int(out.NRGBAAt(1, 0).R) - int(out.NRGBAAt(0, 0).R)
		if spread <= previousSpread {
			t.Fatalf("factor %v: spread %d did not grow past %d", factor, spread, previousSpread)
		}
		previousSpread = spread
	}
}

func TestContrastLeavesAlphaAlone(t *testing.T) {
	source := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	source.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 200, B: 90, A: 130})

	identityPolicy := ROIPolicy{XFrac: 0, YFrac: 0, WidthFrac: 1, HeightFrac: 1}
	out := CropAndEnhance(source, identityPolicy, 2.0)

	if got := out.NRGBAAt(0, 0).A; got != 130 {
		t.Fatalf("alpha = %d, want 130", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Decode() error = %v, want ErrDecode", err)
	}
}

func TestCropAndEnhanceBlobRoundTrip(t *testing.T) {
	source := imaging.New(90, 60, color.NRGBA{R: 120, G: 130, B: 140, A: 255})
	blob := encodePNG(t, source)

	png, err := CropAndEnhanceBlob(blob, DefaultROIPolicy(), 1.2)
	if err != nil {
		t.Fatalf("CropAndEnhanceBlob() error = %v", err)
	}

	decoded, err := Decode(png)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded.Bounds().Dx() != 30 || decoded.Bounds().Dy() != 30 {
		t.Fatalf("result is %dx%d, want 30x30", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestCropAndEnhanceBlobRejectsGarbage(t *testing.T) {
	_, err := CropAndEnhanceBlob([]byte{0x00, 0x01}, DefaultROIPolicy(), 1.2)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("CropAndEnhanceBlob() error = %v, want ErrDecode", err)
	}
}
