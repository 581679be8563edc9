/*
Package notify carries transient user-facing notifications.

The recognition pipeline treats its notifier as an explicit optional
collaborator: components receive a Notifier at construction time and call
it unconditionally. Discard stands in when no surface wants the messages.
*/
package notify

import (
	"strconv"
	"sync"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

// Notifier shows a transient message for roughly durationMs milliseconds.
// Fire and forget; implementations must never block the caller.
type Notifier interface {
	Notify(message string, durationMs int)
}

type discard struct{}

func (discard) Notify(string, int) {}

// Discard drops every notification.
var Discard Notifier = discard{}

// Entry is one notification kept in a Feed.
type Entry struct {
	Message    string    `json:"message"`
	DurationMs int       `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Feed is a bounded in-memory notification buffer the UI polls. Every
// notification is also written to the log.
type Feed struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(message string, durationMs int) {
	tl.Log(tl.Notice, palette.Cyan, "Notification: '%s' ('%s'ms)", message, strconv.Itoa(durationMs))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{Message: message, DurationMs: durationMs, At: time.Now()})
	if len(f.entries) > f.limit {
		f.entries = f.entries[len(f.entries)-f.limit:]
	}
}

// Recent returns the buffered notifications, oldest first.
func (f *Feed) Recent() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}
