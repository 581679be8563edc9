/*
Package ocr recognizes a price inside a product photo.

It exposes two recognition backends behind one capability (a remote HTTP
service and an in-process Tesseract fallback) and a Gateway that
preprocesses the photo, drives backend failover and parses the price out
of the recognized text.
*/
package ocr

import (
	"context"
	"errors"
)

// Error taxonomy for recognition. Callers branch on these with errors.Is;
// everything else about a failure is context for the logs.
var (
	// ErrNetwork marks a remote backend that was unreachable or answered
	// with a non-2xx status. It triggers the local fallback.
	ErrNetwork = errors.New("remote OCR backend failed")

	// ErrLoad marks a local recognition model that could not be loaded.
	ErrLoad = errors.New("local OCR model load failed")

	// ErrRecognition marks a request for which every backend failed.
	ErrRecognition = errors.New("all OCR backends failed")
)

// Backend turns a preprocessed PNG into raw recognized text.
//
// A backend reports its own failure and nothing more: retry and failover
// policy live in the Gateway, never here.
type Backend interface {
	Name() string
	Recognize(ctx context.Context, png []byte, languageHints []string) (string, error)
}

// FallbackBackend is a Backend whose recognition model must be loaded
// before use. EnsureLoaded is idempotent and concurrency-safe: one load
// runs, every waiter shares its outcome.
type FallbackBackend interface {
	Backend
	IsLoaded() bool
	EnsureLoaded(languageHints []string) error
}
