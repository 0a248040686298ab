package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/timeline"
)

// Job is one render request. Its entries and settings never change after
// NewJob; only the state and the cancel flag do.
type Job struct {
	ID       string
	Entries  []timeline.Entry
	Settings config.RenderSettings

	machine   Machine
	cancelled atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewJob(id string, entries []timeline.Entry, settings config.RenderSettings) *Job {
	cp := make([]timeline.Entry, len(entries))
	copy(cp, entries)
	return &Job{ID: id, Entries: cp, Settings: settings}
}

func (j *Job) State() State {
	return j.machine.State()
}

// Cancel requests cancellation. The render stops at the next frame boundary.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

func (j *Job) bind(cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()
	if j.Cancelled() {
		cancel()
	}
}

// Status is the outcome of a render.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Result describes how a render ended. Handle is set only when Completed
// and is the only way back to the video: the sink's own files are gone with
// the job's temp directory. Err is set only when Cancelled or Failed.
type Result struct {
	Status       Status            `json:"status"`
	Handle       string            `json:"handle,omitempty"`
	Frames       int               `json:"frames"`
	Placeholders []timeline.DayKey `json:"placeholders,omitempty"`
	Err          error             `json:"-"`
}

// Reason is the user-facing failure text, "<code>: <message>".
func (r Result) Reason() string {
	return errors.PublicMessage(r.Err)
}
