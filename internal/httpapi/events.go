package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/progress"
)

// subscriberBuffer is how many updates a slow client may lag behind before
// updates are dropped for it.
const subscriberBuffer = 64

// chanSink forwards updates to a channel without ever blocking the render.
type chanSink struct {
	id string
	ch chan progress.Event
}

func (s chanSink) OnProgress(percent float64, label string) {
	select {
	case s.ch <- progress.Event{JobID: s.id, Percent: percent, Label: label, At: time.Now().UTC()}:
	default:
	}
}

// RenderEvents streams progress as Server-Sent Events and ends with a
// "done" event carrying the final snapshot.
func (h *Handler) RenderEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "renderId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, errors.New(errors.CodeInternal, "streaming is not supported"))
		return
	}

	snap, err := h.renders.Status(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done, err := h.renders.Done(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sink := chanSink{id: id, ch: make(chan progress.Event, subscriberBuffer)}
	unsubscribe, err := h.renders.Subscribe(id, sink)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Текущее состояние сразу, чтобы клиент не ждал следующего кадра.
	writeEvent(w, "progress", progress.Event{JobID: id, Percent: snap.Percent, Label: snap.Label, State: snap.State, At: time.Now().UTC()})
	flusher.Flush()

	for {
		select {
		case ev := <-sink.ch:
			writeEvent(w, "progress", ev)
			flusher.Flush()
		case <-done:
			h.drain(w, sink.ch)
			final, err := h.renders.Status(id)
			if err == nil {
				writeEvent(w, "done", final)
			}
			flusher.Flush()
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) drain(w http.ResponseWriter, ch <-chan progress.Event) {
	for {
		select {
		case ev := <-ch:
			writeEvent(w, "progress", ev)
		default:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

var _ engine.ProgressSink = chanSink{}
