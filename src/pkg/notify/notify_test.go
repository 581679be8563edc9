package notify

import (
	"fmt"
	"testing"
)

func TestFeedKeepsOnlyTheNewestEntries(t *testing.T) {
	feed := NewFeed(3)
	for i := 0; i < 5; i++ {
		feed.Notify(fmt.Sprintf("message %d", i), 2000)
	}

	recent := feed.Recent()
	if len(recent) != 3 {
		t.Fatalf("Recent() = %d entries, want 3", len(recent))
	}
	for i, entry := range recent {
		want := fmt.Sprintf("message %d", i+2)
		if entry.Message != want {
			t.Fatalf("Recent()[%d] = %q, want %q", i, entry.Message, want)
		}
		if entry.DurationMs != 2000 || entry.At.IsZero() {
			t.Fatalf("Recent()[%d] metadata = %+v", i, entry)
		}
	}
}

func TestDiscardIsSafe(t *testing.T) {
	Discard.Notify("dropped", 100)
}
