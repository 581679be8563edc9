package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"poster-editor/src/pkg/batch"
	"poster-editor/src/pkg/config"
	"poster-editor/src/pkg/notify"
	"poster-editor/src/pkg/ocr"
	"poster-editor/src/pkg/panel"
	"poster-editor/src/pkg/util"
)

/*
main runs price recognition from the command line.

-image can be:
  - a single image file (.jpg/.jpeg/.png): the full pipeline runs and its
    artifacts (original, cropped ROI, OCR text, price) land in a run
    directory under -out.
  - a directory of images: every image goes through the batch scheduler in
    waves, exactly like a "recognize all" click in the editor, and the
    recognized prices are printed at the end.
*/
func main() {
	config.CheckIfEnvVarsPresent()

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Program-specific flags.
	imagePath := flag.String("image", "", "Path to a product image OR a directory with images (.jpg/.jpeg/.png).")
	outputDirPath := flag.String("out", "./out", "Directory where recognition artifacts will be stored.")
	remoteURL := flag.String("remote", "", "Remote OCR endpoint URL. Empty runs the local engine only.")
	concurrency := flag.Int("concurrency", 4, "How many images are recognized at once in directory mode.")

	// Parse and initialize config.
	flag.Parse()
	util.RequiredFlag(imagePath, "image")
	util.EnsureFlags()
	config.InitializeConfig(*configPath)

	var ocrCfg ocr.Config
	if config.Section("ocr", &ocrCfg) {
		ocr.InitializeConfig(&ocrCfg)
	} else {
		ocr.InitializeConfig(nil)
	}
	if strings.TrimSpace(*remoteURL) != "" {
		ocr.Cfg.RemoteURL = *remoteURL
	}

	tl.Log(
		tl.Notice, palette.BlueBold, "%s entrypoint. Config path: '%s'",
		"Running price recognition", *configPath,
	)

	var remote ocr.Backend
	if strings.TrimSpace(ocr.Cfg.RemoteURL) != "" {
		remote = ocr.NewRemoteBackend(ocr.Cfg.RemoteURL, time.Duration(ocr.Cfg.RemoteTimeoutSeconds)*time.Second)
	}
	gateway := ocr.NewGateway(remote, ocr.NewLocalBackend(), notify.Discard, ocr.Cfg)

	info, statErr := os.Stat(*imagePath)
	xerr.QuitIfError(statErr, "stat -image input path")

	if info.IsDir() {
		recognizeDirectory(gateway, *imagePath, *concurrency)
		return
	}

	runDirPath, e := ocr.ProcessImageFile(gateway, *imagePath, *outputDirPath)
	e.QuitIf(xerr.ErrorTypeError)

	tl.Log(tl.Notice1, palette.GreenBold, "%s. Results stored in '%s'", "Recognition run completed", runDirPath)
}

// recognizeDirectory pushes every image in the directory through the batch
// scheduler and prints each file's recognized price.
func recognizeDirectory(gateway *ocr.Gateway, dirPath string, concurrency int) {
	imagePaths, e := listImagesInDir(dirPath)
	e.QuitIf(xerr.ErrorTypeError)

	if len(imagePaths) == 0 {
		tl.Log(tl.Warning, palette.PurpleBold, "No .jpg/.jpeg/.png files found at: '%s'", dirPath)
		os.Exit(0)
	}

	tl.Log(tl.Notice1, palette.GreenBold, "Found '%s' images to recognize", strconv.Itoa(len(imagePaths)))

	containers := make([]batch.Container, 0, len(imagePaths))
	items := make([]*panel.Item, 0, len(imagePaths))
	for i, path := range imagePaths {
		blob, readErr := os.ReadFile(path)
		if readErr != nil {
			tl.Log(tl.Error, palette.RedBold, "Failed to read '%s': '%s'", path, readErr)
			continue
		}
		item := panel.NewItem(int64(i+1), filepath.Base(path), blob)
		items = append(items, item)
		containers = append(containers, item)
	}

	scheduler := batch.NewScheduler(gateway, concurrency, 200*time.Millisecond)
	summary, runErr := scheduler.Run(context.Background(), containers)
	xerr.QuitIfError(runErr, "run batch recognition")

	for _, item := range items {
		tl.Log(tl.Info, palette.Cyan, "'%s': %s", item.Name(), item.Caption())
	}

	tl.Log(
		tl.Notice, palette.GreenBold, "Done. Succeeded: '%s', failed: '%s'",
		strconv.Itoa(summary.Succeeded), strconv.Itoa(summary.Failed),
	)
}

func listImagesInDir(dirPath string) (images []string, e *xerr.Error) {
	entries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		e = xerr.NewError(readErr, "read directory", dirPath)
		return
	}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if !isAllowedImageExt(ext) {
			continue
		}

		images = append(images, filepath.Join(dirPath, ent.Name()))
	}

	sort.Strings(images)
	return
}

func isAllowedImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}
