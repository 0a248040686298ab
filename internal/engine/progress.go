package engine

import "sync"

// ProgressSink receives progress updates. Calls are fire-and-forget and
// must not block the render.
type ProgressSink interface {
	OnProgress(percent float64, label string)
}

type ProgressFunc func(percent float64, label string)

func (f ProgressFunc) OnProgress(percent float64, label string) {
	f(percent, label)
}

const (
	labelLoading    = "Loading images..."
	labelRendering  = "Rendering..."
	labelFinalizing = "Finalizing..."
	labelCompleted  = "Completed"
)

// reporter drops updates that would move progress backwards.
type reporter struct {
	mu   sync.Mutex
	sink ProgressSink
	last float64
}

func newReporter(sink ProgressSink) *reporter {
	return &reporter{sink: sink, last: -1}
}

func (r *reporter) report(percent float64, label string) {
	if r.sink == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if percent < r.last {
		return
	}
	r.last = percent
	r.sink.OnProgress(percent, label)
}
