package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeContainer records the lock/caption traffic the scheduler drives.
type fakeContainer struct {
	mu       sync.Mutex
	id       string
	blob     []byte
	locked   bool
	lockOps  int
	captions []string
}

func newFakeContainer(id string) *fakeContainer {
	return &fakeContainer{id: id, blob: []byte(id)}
}

func (c *fakeContainer) ID() string        { return c.id }
func (c *fakeContainer) ImageBlob() []byte { return c.blob }

func (c *fakeContainer) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = true
	c.lockOps++
}

func (c *fakeContainer) Unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
}

func (c *fakeContainer) SetCaption(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captions = append(c.captions, text)
}

func (c *fakeContainer) lastCaption() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.captions) == 0 {
		return ""
	}
	return c.captions[len(c.captions)-1]
}

// waveRecognizer tracks how many recognitions overlap, to verify the
// concurrency ceiling and the wave partitioning.
type waveRecognizer struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	failFor     map[string]bool
	hold        time.Duration
}

func (r *waveRecognizer) RecognizePriceSilently(ctx context.Context, blob []byte) (string, bool) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	r.mu.Unlock()

	time.Sleep(r.hold)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	if r.failFor[string(blob)] {
		return "", false
	}
	return "42", true
}

func TestRunPartitionsIntoWaves(t *testing.T) {
	recognizer := &waveRecognizer{hold: 30 * time.Millisecond}
	scheduler := NewScheduler(recognizer, 4, 0)

	containers := make([]Container, 10)
	for i := range containers {
		containers[i] = newFakeContainer(fmt.Sprintf("c%d", i))
	}

	summary, err := scheduler.Run(context.Background(), containers)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Attempted != 10 || summary.Succeeded != 10 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if recognizer.maxInFlight > 4 {
		t.Fatalf("maxInFlight = %d, want <= 4", recognizer.maxInFlight)
	}
	if recognizer.maxInFlight != 4 {
		t.Fatalf("maxInFlight = %d, want a full wave of 4", recognizer.maxInFlight)
	}
	if len(summary.Results) != 10 {
		t.Fatalf("results = %d, want 10", len(summary.Results))
	}
	// Results keep the caller's container order.
	for i, result := range summary.Results {
		if result.ContainerID != fmt.Sprintf("c%d", i) {
			t.Fatalf("results[%d].ContainerID = %s", i, result.ContainerID)
		}
	}
}

func TestRunSettlesEveryItemDespiteFailures(t *testing.T) {
	recognizer := &waveRecognizer{failFor: map[string]bool{"c1": true, "c4": true}}
	scheduler := NewScheduler(recognizer, 2, 0)

	containers := make([]*fakeContainer, 6)
	asInterface := make([]Container, 6)
	for i := range containers {
		containers[i] = newFakeContainer(fmt.Sprintf("c%d", i))
		asInterface[i] = containers[i]
	}

	summary, err := scheduler.Run(context.Background(), asInterface)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Succeeded != 4 || summary.Failed != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	for i, container := range containers {
		if container.locked {
			t.Errorf("container %d still locked after the run", i)
		}
		if container.lockOps != 1 {
			t.Errorf("container %d lock operations = %d, want 1", i, container.lockOps)
		}
		if len(container.captions) == 0 || container.captions[0] != CaptionInFlight {
			t.Errorf("container %d first caption = %v, want in-flight marker", i, container.captions)
		}
	}

	if got := containers[1].lastCaption(); got != CaptionFailed {
		t.Errorf("failed container caption = %q", got)
	}
	if got := containers[0].lastCaption(); !strings.HasPrefix(got, "折后价：￥") {
		t.Errorf("succeeded container caption = %q", got)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	recognizer := recognizerFunc(func(context.Context, []byte) (string, bool) {
		<-release
		return "1", true
	})
	scheduler := NewScheduler(recognizer, 1, 0)

	firstDone := make(chan error, 1)
	go func() {
		_, err := scheduler.Run(context.Background(), []Container{newFakeContainer("a")})
		firstDone <- err
	}()

	// Wait for the first run to take the busy flag.
	deadline := time.Now().Add(time.Second)
	for !scheduler.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("first run never became busy")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := scheduler.Run(context.Background(), []Container{newFakeContainer("b")})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second Run() error = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if scheduler.Busy() {
		t.Fatal("scheduler still busy after the run finished")
	}
}

func TestRunLogsCountsAsPlainNumbers(t *testing.T) {
	origStdout, origStderr := os.Stdout, os.Stderr
	pipeOut, pipeIn, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("pipe: %v", pipeErr)
	}
	os.Stdout, os.Stderr = pipeIn, pipeIn

	scheduler := NewScheduler(&waveRecognizer{failFor: map[string]bool{"c1": true}}, 2, 0)
	containers := make([]Container, 6)
	for i := range containers {
		containers[i] = newFakeContainer(fmt.Sprintf("c%d", i))
	}
	summary, runErr := scheduler.Run(context.Background(), containers)

	os.Stdout, os.Stderr = origStdout, origStderr
	_ = pipeIn.Close()
	logged, readErr := io.ReadAll(pipeOut)
	if readErr != nil {
		t.Fatalf("read captured log: %v", readErr)
	}

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if summary.Succeeded != 5 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	// The logger stringifies every argument before formatting, so numeric
	// verbs would render as "%!d(string=6)" instead of the count.
	if strings.Contains(string(logged), "%!") {
		t.Fatalf("log output contains a mis-formatted verb:\n%s", logged)
	}
}

func TestRunEmptyInput(t *testing.T) {
	scheduler := NewScheduler(recognizerFunc(func(context.Context, []byte) (string, bool) {
		return "", false
	}), 4, 0)

	summary, err := scheduler.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Attempted != 0 || len(summary.Results) != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.JobID == "" {
		t.Fatal("empty run still gets a job id")
	}
}

type recognizerFunc func(ctx context.Context, blob []byte) (string, bool)

func (f recognizerFunc) RecognizePriceSilently(ctx context.Context, blob []byte) (string, bool) {
	return f(ctx, blob)
}
