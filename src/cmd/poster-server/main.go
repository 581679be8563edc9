package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"poster-editor/src/pkg/batch"
	"poster-editor/src/pkg/config"
	echomw "poster-editor/src/pkg/echo-middleware"
	"poster-editor/src/pkg/email"
	"poster-editor/src/pkg/notify"
	"poster-editor/src/pkg/ocr"
	"poster-editor/src/pkg/panel"
	"poster-editor/src/pkg/server"
	"poster-editor/src/pkg/storage"
)

/*
main is the entrypoint of the poster editor API.

It initializes configuration, opens the image store, wires the recognition
gateway and batch scheduler, seeds panel slots for every stored image, and
serves the HTTP API until the process is stopped.
*/
func main() {
	config.CheckIfEnvVarsPresent(echomw.EnvAPIBearerToken)

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Program-specific flags.
	concurrency := flag.Int("concurrency", 4, "How many images are recognized at once during a batch run.")

	// Parse and initialize config.
	flag.Parse()
	config.InitializeConfig(*configPath)

	initializeSections()

	tl.Log(
		tl.Notice, palette.BlueBold, "%s poster editor API. Config path: '%s'",
		"Starting", *configPath,
	)

	store, e := storage.Open(storage.Cfg)
	e.QuitIf(xerr.ErrorTypeError)
	defer store.Close()

	feed := notify.NewFeed(50)

	var remote ocr.Backend
	if strings.TrimSpace(ocr.Cfg.RemoteURL) != "" {
		remote = ocr.NewRemoteBackend(ocr.Cfg.RemoteURL, time.Duration(ocr.Cfg.RemoteTimeoutSeconds)*time.Second)
	} else {
		tl.Log(tl.Warning, palette.YellowBold, "No remote OCR endpoint configured, using %s only", "the local engine")
	}

	gateway := ocr.NewGateway(remote, ocr.NewLocalBackend(), feed, ocr.Cfg)
	scheduler := batch.NewScheduler(gateway, *concurrency, 200*time.Millisecond)

	panels := panel.NewRegistry()
	seedPanels(store, panels)

	srv := server.New(store, gateway, scheduler, panels, feed, email.Cfg)

	e2 := echo.New()
	e2.HideBanner = true
	e2.Use(echomw.RouteAccessLoggerMiddleware)
	e2.Use(echomw.RateLimiterMiddleware)
	if strings.TrimSpace(os.Getenv(echomw.EnvAPIBearerToken)) != "" {
		e2.Use(echomw.RequireBearerToken)
	} else {
		tl.Log(tl.Warning, palette.YellowBold, "%s is not set, API runs %s", echomw.EnvAPIBearerToken, "without authentication")
	}

	srv.RegisterRoutes(e2)

	echomw.UpdateRateLimits(echomw.Cfg.MiddlewareRateLimit, echomw.Cfg.MiddlewareBurst)

	address := fmt.Sprintf("%s:%d", echomw.Cfg.Address, echomw.Cfg.Port)
	tl.Log(tl.Notice1, palette.GreenBold, "%s on '%s'", "Listening", address)

	startErr := e2.Start(address)
	xerr.QuitIfError(startErr, "run HTTP server")
}

// initializeSections hands every package its section of the config file,
// or nil to keep that package on its defaults.
func initializeSections() {
	var ocrCfg ocr.Config
	if config.Section("ocr", &ocrCfg) {
		ocr.InitializeConfig(&ocrCfg)
	} else {
		ocr.InitializeConfig(nil)
	}

	var serverCfg echomw.Config
	if config.Section("server", &serverCfg) {
		echomw.InitializeConfig(&serverCfg)
	} else {
		echomw.InitializeConfig(nil)
	}

	var storageCfg storage.Config
	if config.Section("storage", &storageCfg) {
		storage.InitializeConfig(&storageCfg)
	} else {
		storage.InitializeConfig(nil)
	}

	var emailCfg email.Config
	if config.Section("email", &emailCfg) {
		email.InitializeConfig(&emailCfg)
	} else {
		email.InitializeConfig(nil)
	}
}

// seedPanels registers a panel slot for every stored image so batch
// recognition covers the whole history right after a restart.
func seedPanels(store *storage.Store, panels *panel.Registry) {
	ids, e := store.AllIDs()
	if e != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Could not list stored images: '%s'", e)
		return
	}

	for _, id := range ids {
		img, e := store.GetImage(id)
		if e != nil {
			tl.Log(tl.Warning, palette.YellowBold, "Could not load stored image '%s': '%s'", strconv.FormatInt(id, 10), e)
			continue
		}

		item := panel.NewItem(img.ID, img.Name, img.Data)
		if img.Price != "" {
			item.SetCaption(fmt.Sprintf(batch.CaptionPriceTemplate, img.Price))
		}
		panels.Add(item)
	}

	tl.Log(tl.Info, palette.Cyan, "Seeded '%s' panel slots from storage", strconv.Itoa(len(ids)))
}
