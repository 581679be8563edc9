package ocr

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"poster-editor/src/pkg/preprocess"
	"poster-editor/src/pkg/priceparse"
)

/*
ProcessImageFile runs the full recognition pipeline over one image file and
leaves the intermediate artifacts behind for inspection:

 1. Creates a per-run directory under outputDirPath, named by timestamp.
 2. Copies the original image into it as orig.<ext>.
 3. Saves the cropped/enhanced region as roi.png.
 4. Recognizes text through the gateway and saves it as ocr.txt.
 5. Extracts the price and saves it as price.json.

A missing price is not an error; price.json then holds null. Any file or
recognition failure returns a *xerr.Error.
*/
func ProcessImageFile(gateway *Gateway, imagePath string, outputDirPath string) (runDirPath string, e *xerr.Error) {
	normalizedOutputDirPath := strings.TrimSpace(outputDirPath)
	if normalizedOutputDirPath == "" {
		normalizedOutputDirPath = "./out"
	}

	tl.Log(
		tl.Notice, palette.BlueBold, "%s price recognition for '%s' into root '%s'",
		"Starting", imagePath, normalizedOutputDirPath,
	)

	e = ensureOutputDirectory(normalizedOutputDirPath)
	if e != nil {
		return "", e
	}

	// Per-run directory, e.g. ./out/2025-11-26_16-35-31
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	runDirPath = filepath.Join(normalizedOutputDirPath, timestamp)

	e = ensureOutputDirectory(runDirPath)
	if e != nil {
		return runDirPath, e
	}

	blob, readErr := os.ReadFile(imagePath)
	if readErr != nil {
		e = xerr.NewError(readErr, "read source image", imagePath)
		return runDirPath, e
	}

	originalExt := strings.ToLower(filepath.Ext(imagePath))
	if originalExt == "" {
		originalExt = ".jpg"
	}

	e = saveBlobToFile(filepath.Join(runDirPath, "orig"+originalExt), blob)
	if e != nil {
		return runDirPath, e
	}

	// Save the cropped region so a bad ROI policy is easy to spot.
	roiPNG, prepErr := preprocess.CropAndEnhanceBlob(blob, gateway.cfg.ROIPolicy(), gateway.cfg.ContrastFactor)
	if prepErr != nil {
		e = xerr.NewError(prepErr, "preprocess source image", imagePath)
		return runDirPath, e
	}
	e = saveBlobToFile(filepath.Join(runDirPath, "roi.png"), roiPNG)
	if e != nil {
		return runDirPath, e
	}

	text, recErr := gateway.RecognizeText(context.Background(), blob)
	if recErr != nil {
		e = xerr.NewError(recErr, "recognize text in image", imagePath)
		return runDirPath, e
	}

	e = saveTextToFile(filepath.Join(runDirPath, "ocr.txt"), text)
	if e != nil {
		return runDirPath, e
	}

	var priceValue any
	if price, ok := priceparse.ExtractPrice(text); ok {
		priceValue = price
		tl.Log(tl.Info, palette.Cyan, "Extracted price: '%s'", price)
	} else {
		tl.Log(tl.Warning, palette.YellowBold, "No price found in '%s'", imagePath)
	}

	e = saveJSONToFile(filepath.Join(runDirPath, "price.json"), priceValue)
	if e != nil {
		return runDirPath, e
	}

	tl.Log(
		tl.Info1, palette.Green, "Finished '%s'. Run dir: '%s'",
		imagePath, runDirPath,
	)

	return runDirPath, e
}

// ensureOutputDirectory creates the target directory (and parents) if needed.
func ensureOutputDirectory(outputDirPath string) (e *xerr.Error) {
	err := os.MkdirAll(outputDirPath, 0o755)
	if err != nil {
		e = xerr.NewError(err, "create output directory", outputDirPath)
		return e
	}

	tl.Log(
		tl.Verbose, palette.CyanDim, "Ensured output directory '%s'",
		outputDirPath,
	)

	return e
}

func saveBlobToFile(destinationPath string, blob []byte) (e *xerr.Error) {
	writeErr := os.WriteFile(destinationPath, blob, 0o644)
	if writeErr != nil {
		e = xerr.NewError(writeErr, "write image file", destinationPath)
		return e
	}

	tl.Log(
		tl.Info1, palette.Green, "Saved image to '%s'",
		destinationPath,
	)

	return e
}

// saveTextToFile writes the OCR text into a .txt file, overwriting any
// existing file at that location.
func saveTextToFile(destinationPath string, text string) (e *xerr.Error) {
	writeErr := os.WriteFile(destinationPath, []byte(text), 0o644)
	if writeErr != nil {
		e = xerr.NewError(writeErr, "write OCR text file", destinationPath)
		return e
	}

	tl.Log(
		tl.Info1, palette.Green, "Saved OCR text to '%s'",
		destinationPath,
	)

	return e
}

// saveJSONToFile marshals the value to pretty-printed JSON and writes it
// to destinationPath.
func saveJSONToFile(destinationPath string, value any) (e *xerr.Error) {
	jsonBytes, marshalErr := json.MarshalIndent(value, "", "  ")
	if marshalErr != nil {
		e = xerr.NewError(marshalErr, "marshal value to JSON", destinationPath)
		return e
	}

	writeErr := os.WriteFile(destinationPath, jsonBytes, 0o644)
	if writeErr != nil {
		e = xerr.NewError(writeErr, "write JSON file", destinationPath)
		return e
	}

	tl.Log(
		tl.Info1, palette.Green, "Saved JSON data to '%s'",
		destinationPath,
	)

	return e
}
