package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

// RemoteBackend sends the preprocessed image to a remote recognition
// service: POST {"image": <base64, no data-URL prefix>} to the configured
// URL, 2xx response carrying the recognized text either as the raw body or
// as a "text" field of a JSON body.
type RemoteBackend struct {
	url    string
	client *http.Client
}

type remoteRequest struct {
	Image string `json:"image"`
}

type remoteResponse struct {
	Text string `json:"text"`
}

// NewRemoteBackend builds a remote backend for the given endpoint. The
// timeout is enforced on every call and surfaces as ErrNetwork.
func NewRemoteBackend(url string, timeout time.Duration) *RemoteBackend {
	return &RemoteBackend{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (b *RemoteBackend) Name() string { return "remote" }

/*
Recognize performs one request against the remote endpoint and returns the
recognized text. Any transport failure or non-2xx status comes back as an
error wrapping ErrNetwork; the backend never retries on its own.
*/
func (b *RemoteBackend) Recognize(ctx context.Context, png []byte, languageHints []string) (string, error) {
	tl.Log(tl.Info1, palette.Cyan, "Sending '%s' bytes to remote OCR at '%s'", strconv.Itoa(len(png)), b.url)

	payload := remoteRequest{Image: base64.StdEncoding.EncodeToString(png)}
	encoded, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return "", fmt.Errorf("marshal remote OCR request: %w", marshalErr)
	}

	req, newReqErr := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewBuffer(encoded))
	if newReqErr != nil {
		return "", fmt.Errorf("build remote OCR request: %w", newReqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, httpErr := b.client.Do(req)
	if httpErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, httpErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("%w: read response body: %v", ErrNetwork, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status '%s'", ErrNetwork, resp.Status)
	}

	text := extractText(body)
	tl.Log(tl.Info1, palette.Green, "Remote OCR answered with '%s' characters", strconv.Itoa(len(text)))
	return text, nil
}

// extractText accepts either a JSON object with a "text" field or a raw
// text body, whichever the service speaks.
func extractText(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var parsed remoteResponse
		if json.Unmarshal(body, &parsed) == nil {
			return parsed.Text
		}
	}
	return trimmed
}
