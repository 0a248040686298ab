package worker

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

// scriptedQueue returns its items in order, then blocks until ctx ends.
type scriptedQueue struct {
	mu    sync.Mutex
	items []popResult
}

type popResult struct {
	payload string
	err     error
}

func (q *scriptedQueue) Pop(ctx context.Context) (string, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		it := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return it.payload, it.err
	}
	q.mu.Unlock()
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingRenders struct {
	mu      sync.Mutex
	started []jobs.Request
	done    chan string
}

func (r *recordingRenders) StartRender(ctx context.Context, req jobs.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	r.mu.Lock()
	r.started = append(r.started, req)
	r.mu.Unlock()
	return req.ID, nil
}

func (r *recordingRenders) Wait(ctx context.Context, id string) (engine.Result, error) {
	r.done <- id
	return engine.Result{Status: engine.StatusCompleted, Handle: "renders/" + id + ".mp4", Frames: 60}, nil
}

func TestRunDispatchesRequests(t *testing.T) {
	var logBuf syncBuffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &logBuf})

	q := &scriptedQueue{items: []popResult{
		{payload: `{"id":"a","entries":[{"day":"2024-01-01","image":"a.jpg"}]}`},
		{payload: `not json`},
		{err: errors.New(errors.CodeUnavailable, "redis down")},
		{payload: `{"id":"bad","entries":[]}`},
		{payload: `{"id":"b","entries":[{"day":"2024-01-02","image":"b.jpg"}]}`},
	}}
	renders := &recordingRenders{done: make(chan string, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Deps{Queue: q, Renders: renders, Log: log, Backoff: time.Millisecond})
	}()

	for _, want := range []string{"a", "b"} {
		select {
		case got := <-renders.done:
			if got != want {
				t.Errorf("Expected job %s, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for job %s", want)
		}
	}

	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	renders.mu.Lock()
	if len(renders.started) != 2 {
		t.Errorf("Expected 2 started renders, got %d", len(renders.started))
	}
	if s := renders.started[0].Settings; s.DurationPerSlide != 2.0 {
		t.Errorf("Expected default settings for queued request, got %+v", s)
	}
	renders.mu.Unlock()

	out := logBuf.String()
	for _, want := range []string{"discarding malformed render request", "queue pop error, retrying", "render request rejected", "render completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log %q, got:\n%s", want, out)
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, Deps{Queue: &scriptedQueue{}, Renders: &recordingRenders{}, Log: logger.Discard()})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
