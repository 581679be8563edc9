/*
Package batch drives price recognition over many product images at once.

Containers are processed in sequential waves of at most the configured
concurrency limit: everything in a wave runs concurrently, the next wave
starts only after the whole wave settled. That bounds peak load on the
recognition backends while keeping throughput up. Only one run may be
active at a time.
*/
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

// ErrBusy rejects a run requested while another one is in flight. The
// request is never queued and has no side effects.
var ErrBusy = errors.New("a recognition run is already in progress")

// Caption literals written into a container's display text. Each state is
// visually distinct from the others.
const (
	CaptionInFlight      = "正在识别……"
	CaptionFailed        = "识别失败"
	CaptionPriceTemplate = "折后价：￥%s"
)

// Container is one product-image slot on the poster. The scheduler locks
// it for the duration of its recognition, writes its caption, and always
// unlocks it again, whatever happened in between.
type Container interface {
	ID() string
	ImageBlob() []byte
	Lock()
	Unlock()
	SetCaption(text string)
}

// Recognizer is the slice of the OCR gateway the scheduler needs.
type Recognizer interface {
	RecognizePriceSilently(ctx context.Context, blob []byte) (price string, ok bool)
}

// ItemResult reports the outcome for one container, so the caller can
// persist derived prices; the scheduler itself never touches storage.
type ItemResult struct {
	ContainerID string `json:"container_id"`
	Price       string `json:"price,omitempty"`
	OK          bool   `json:"ok"`
}

// Summary aggregates one finished run.
type Summary struct {
	JobID     string       `json:"job_id"`
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

type Scheduler struct {
	recognizer Recognizer

	concurrencyLimit int
	interWavePause   time.Duration

	mu      sync.Mutex
	running bool
}

// NewScheduler builds a scheduler over the given recognizer. A
// non-positive concurrencyLimit falls back to 4.
func NewScheduler(recognizer Recognizer, concurrencyLimit int, interWavePause time.Duration) *Scheduler {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 4
	}
	return &Scheduler{
		recognizer:       recognizer,
		concurrencyLimit: concurrencyLimit,
		interWavePause:   interWavePause,
	}
}

// Busy reports whether a run is currently in flight.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

/*
Run recognizes every container, in the order given, in waves of at most
the concurrency limit. Within a wave the completion order is unspecified
and every item settles independently; a failing item never aborts its
siblings. Between waves the scheduler pauses briefly to give the host UI
room to breathe.

The caller decides which containers are eligible; Run only iterates what
it is given. A second Run while one is active fails with ErrBusy.
*/
func (s *Scheduler) Run(ctx context.Context, containers []Container) (Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Summary{}, ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	jobID := uuid.New().String()
	tl.Log(
		tl.Notice, palette.BlueBold, "Recognition job '%s': '%s' containers in waves of '%s'",
		jobID, strconv.Itoa(len(containers)), strconv.Itoa(s.concurrencyLimit),
	)

	var succeeded, failed atomic.Int64
	results := make([]ItemResult, len(containers))

	for start := 0; start < len(containers); start += s.concurrencyLimit {
		end := start + s.concurrencyLimit
		if end > len(containers) {
			end = len(containers)
		}

		var wave sync.WaitGroup
		for i := start; i < end; i++ {
			wave.Add(1)
			go func(idx int, container Container) {
				defer wave.Done()

				price, ok := s.processContainer(ctx, container)
				results[idx] = ItemResult{ContainerID: container.ID(), Price: price, OK: ok}
				if ok {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}
			}(i, containers[i])
		}
		wave.Wait()

		if end < len(containers) && s.interWavePause > 0 {
			time.Sleep(s.interWavePause)
		}
	}

	summary := Summary{
		JobID:     jobID,
		Attempted: len(containers),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Results:   results,
	}

	tl.Log(
		tl.Notice1, palette.GreenBold, "Recognition job '%s' done: '%s' succeeded, '%s' failed",
		jobID, strconv.Itoa(summary.Succeeded), strconv.Itoa(summary.Failed),
	)

	return summary, nil
}

// processContainer runs the Locked -> Recognizing -> (Updated|Failed) ->
// Unlocked state machine for one container. The unlock sits on a deferred
// path so no outcome can leave the container locked.
func (s *Scheduler) processContainer(ctx context.Context, container Container) (price string, ok bool) {
	container.Lock()
	defer container.Unlock()

	container.SetCaption(CaptionInFlight)

	price, ok = s.recognizer.RecognizePriceSilently(ctx, container.ImageBlob())
	if !ok {
		container.SetCaption(CaptionFailed)
		return "", false
	}

	container.SetCaption(fmt.Sprintf(CaptionPriceTemplate, price))
	return price, true
}
