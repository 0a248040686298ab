// Package progress carries render progress to places outside the process:
// Redis subscribers, a terminal progress bar, SSE clients.
package progress

import (
	"time"

	"github.com/ivlev/daybyday/internal/engine"
)

// Event is one progress update as published on the wire.
type Event struct {
	JobID   string       `json:"job_id"`
	Percent float64      `json:"percent"`
	Label   string       `json:"label"`
	State   engine.State `json:"state,omitempty"`
	At      time.Time    `json:"at"`
}

// Multi fans one update out to many sinks.
type Multi []engine.ProgressSink

func (m Multi) OnProgress(percent float64, label string) {
	for _, s := range m {
		if s != nil {
			s.OnProgress(percent, label)
		}
	}
}
