// Package jobs runs render jobs in the background and lets callers follow,
// cancel and collect them.
package jobs

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/timeline"
)

// Request is a render request as it arrives over HTTP or the queue.
type Request struct {
	ID       string                `json:"id,omitempty"`
	Entries  []timeline.Entry      `json:"entries"`
	Settings config.RenderSettings `json:"settings"`
}

// UnmarshalJSON starts from the default settings, so omitted fields keep
// their defaults. Unknown fields are rejected.
func (r *Request) UnmarshalJSON(b []byte) error {
	type raw Request
	v := raw{Settings: config.DefaultRenderSettings()}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*r = Request(v)
	return nil
}

// Validate runs the same checks the pipeline would, before any job exists.
func (r Request) Validate() error {
	if err := timeline.Validate(r.Entries); err != nil {
		return err
	}
	return r.Settings.Validate()
}

// ResultView is the JSON shape of a finished render.
type ResultView struct {
	Status       engine.Status     `json:"status"`
	Handle       string            `json:"handle,omitempty"`
	Frames       int               `json:"frames"`
	Placeholders []timeline.DayKey `json:"placeholders,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Code         errors.Code       `json:"code,omitempty"`
}

func viewOf(r engine.Result) *ResultView {
	v := &ResultView{
		Status:       r.Status,
		Handle:       r.Handle,
		Frames:       r.Frames,
		Placeholders: r.Placeholders,
	}
	if r.Err != nil {
		v.Reason = r.Reason()
		v.Code = errors.GetCode(r.Err)
	}
	return v
}

// Snapshot is a point-in-time view of a job.
type Snapshot struct {
	ID         string       `json:"id"`
	State      engine.State `json:"state"`
	Percent    float64      `json:"percent"`
	Label      string       `json:"label"`
	Entries    int          `json:"entries"`
	Result     *ResultView  `json:"result,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}
