package ocr

import (
	"context"
	"fmt"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"poster-editor/src/pkg/notify"
	"poster-editor/src/pkg/preprocess"
	"poster-editor/src/pkg/priceparse"
)

/*
Gateway is the single entry point for price recognition.

It preprocesses the uploaded photo, tries the remote backend first and
falls back to the local one, then parses a price out of the recognized
text. The price-returning methods are a hard error boundary: whatever goes
wrong inside, they log it, optionally notify the user, and report
"no price" instead of propagating a failure.
*/
type Gateway struct {
	remote   Backend         // nil when no remote endpoint is configured
	local    FallbackBackend // nil when the local engine is unavailable
	notifier notify.Notifier
	status   *Status
	cfg      Config
}

// NewGateway wires a gateway from its collaborators. Either backend may be
// nil; a nil notifier falls back to notify.Discard.
func NewGateway(remote Backend, local FallbackBackend, notifier notify.Notifier, cfg Config) *Gateway {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Gateway{
		remote:   remote,
		local:    local,
		notifier: notifier,
		status:   &Status{},
		cfg:      cfg,
	}
}

// Status returns the session counters for diagnostics surfaces.
func (g *Gateway) Status() StatusSnapshot {
	return g.status.Snapshot()
}

/*
RecognizeText crops and enhances the photo, then asks the backends for the
text in it. The remote backend is preferred; on any remote failure the
local backend is tried, loading its model if needed. When both are
exhausted the error wraps ErrRecognition. A photo that cannot be decoded
fails with preprocess.ErrDecode before any backend is contacted.

Remote success resets the online-fail counter; remote failure increments
it. The counter never gates the fallback, it only feeds diagnostics.
*/
func (g *Gateway) RecognizeText(ctx context.Context, blob []byte) (string, error) {
	png, prepErr := preprocess.CropAndEnhanceBlob(blob, g.cfg.ROIPolicy(), g.cfg.ContrastFactor)
	if prepErr != nil {
		return "", prepErr
	}

	var remoteErr error
	if g.remote != nil {
		text, err := g.remote.Recognize(ctx, png, g.cfg.LanguageHints)
		if err == nil {
			g.status.recordRemoteSuccess()
			g.status.recordRecognized()
			return text, nil
		}
		remoteErr = err
		g.status.recordRemoteFailure()
		tl.Log(tl.Warning, palette.YellowBold, "Remote OCR failed, falling back to local: '%s'", err)
	}

	if g.local == nil {
		return "", fmt.Errorf("%w: remote: %v, no local fallback", ErrRecognition, remoteErr)
	}

	if !g.local.IsLoaded() {
		tl.Log(tl.Info, palette.Blue, "Local engine '%s' not loaded yet, loading now", g.local.Name())
	}
	if loadErr := g.local.EnsureLoaded(g.cfg.LanguageHints); loadErr != nil {
		return "", fmt.Errorf("%w: remote: %v, local: %v", ErrRecognition, remoteErr, loadErr)
	}
	g.status.recordOfflineReady()

	text, localErr := g.local.Recognize(ctx, png, g.cfg.LanguageHints)
	if localErr != nil {
		return "", fmt.Errorf("%w: remote: %v, local: %v", ErrRecognition, remoteErr, localErr)
	}

	g.status.recordRecognized()
	return text, nil
}

/*
RecognizePrice recognizes text in the photo and extracts a price from it,
notifying the user about the outcome. It never returns an error: any
failure is logged and reported as ok=false.
*/
func (g *Gateway) RecognizePrice(ctx context.Context, blob []byte) (price string, ok bool) {
	return g.recognizePrice(ctx, blob, false)
}

// RecognizePriceSilently is RecognizePrice without the user notification;
// the batch path uses it so a long run does not flood the UI.
func (g *Gateway) RecognizePriceSilently(ctx context.Context, blob []byte) (price string, ok bool) {
	return g.recognizePrice(ctx, blob, true)
}

func (g *Gateway) recognizePrice(ctx context.Context, blob []byte, silent bool) (price string, ok bool) {
	text, err := g.RecognizeText(ctx, blob)
	if err != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Price recognition failed: '%s'", err)
		if !silent {
			g.notifier.Notify("识别过程发生错误", 2000)
		}
		return "", false
	}

	tl.Log(tl.Verbose, palette.CyanDim, "Recognized text: '%s'", text)

	price, ok = priceparse.ExtractPrice(text)
	if !ok {
		if !silent {
			g.notifier.Notify("未能识别价格", 2000)
		}
		return "", false
	}

	if !silent {
		g.notifier.Notify(fmt.Sprintf("成功识别价格: ￥%s", price), 2000)
	}
	return price, true
}
