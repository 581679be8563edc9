package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

// LocalBackend recognizes text in-process with Tesseract. The language
// data is probed once, lazily, on first use; concurrent callers share the
// single in-flight load.
type LocalBackend struct {
	loadOnce sync.Once
	loadErr  error

	mu     sync.Mutex
	loaded bool
}

func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) Name() string { return "local" }

// IsLoaded reports whether the language data has been verified.
func (b *LocalBackend) IsLoaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

/*
EnsureLoaded verifies that Tesseract and the configured language data are
usable. It is safe to call from any number of goroutines; the probe runs
once and every waiter gets the same outcome. Failure wraps ErrLoad.
*/
func (b *LocalBackend) EnsureLoaded(languageHints []string) error {
	b.loadOnce.Do(func() {
		tl.Log(tl.Info, palette.Blue, "Probing local Tesseract with languages '%s'", joinLanguages(languageHints))

		client := gosseract.NewClient()
		defer func() {
			_ = client.Close()
		}()

		if err := client.SetLanguage(joinLanguages(languageHints)); err != nil {
			b.loadErr = fmt.Errorf("%w: %v", ErrLoad, err)
			return
		}

		b.mu.Lock()
		b.loaded = true
		b.mu.Unlock()

		tl.Log(tl.Info1, palette.Green, "Local Tesseract is %s", "ready")
	})

	return b.loadErr
}

/*
Recognize runs Tesseract over the preprocessed PNG. The client is
configured the way the poster photos need it: a single uniform text block,
interword spaces preserved so column-like layouts survive.
*/
func (b *LocalBackend) Recognize(ctx context.Context, png []byte, languageHints []string) (string, error) {
	if err := b.EnsureLoaded(languageHints); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if err := client.SetLanguage(joinLanguages(languageHints)); err != nil {
		return "", fmt.Errorf("unable to client.SetLanguage: %w", err)
	}

	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("unable to client.SetVariable(preserve_interword_spaces): %w", err)
	}

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("unable to client.SetPageSegMode(PSM_SINGLE_BLOCK): %w", err)
	}

	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("unable to client.SetImageFromBytes: %w", err)
	}

	text, ocrErr := client.Text()
	if ocrErr != nil {
		return "", fmt.Errorf("local OCR failed: %w", ocrErr)
	}

	tl.Log(tl.Info1, palette.Green, "Local OCR answered with '%s' characters", strconv.Itoa(len(text)))
	return text, nil
}

func joinLanguages(languageHints []string) string {
	if len(languageHints) == 0 {
		return "eng"
	}
	return strings.Join(languageHints, "+")
}
