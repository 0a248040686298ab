package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/timeline"
)

// gateRunner reports one progress update, then waits for release or cancel.
type gateRunner struct {
	started chan string
	release chan struct{}
}

func newGateRunner() *gateRunner {
	return &gateRunner{started: make(chan string, 8), release: make(chan struct{})}
}

func (r *gateRunner) Run(ctx context.Context, job *engine.Job, progress engine.ProgressSink) engine.Result {
	progress.OnProgress(5, "Loading images...")
	r.started <- job.ID
	for {
		select {
		case <-r.release:
			progress.OnProgress(100, "Completed")
			return engine.Result{Status: engine.StatusCompleted, Handle: "renders/" + job.ID + ".mp4", Frames: 60}
		case <-ctx.Done():
			return engine.Result{Status: engine.StatusCancelled, Err: errors.New(errors.CodeCancelled, "render cancelled")}
		case <-time.After(time.Millisecond):
			if job.Cancelled() {
				return engine.Result{Status: engine.StatusCancelled, Err: errors.New(errors.CodeCancelled, "render cancelled")}
			}
		}
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []Snapshot
}

func (o *recordingObserver) JobStarted(ctx context.Context, req Request, snap Snapshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, snap.ID)
	return nil
}

func (o *recordingObserver) JobFinished(ctx context.Context, snap Snapshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, snap)
	return nil
}

type progressRecorder struct {
	mu     sync.Mutex
	labels []string
}

func (p *progressRecorder) OnProgress(percent float64, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = append(p.labels, label)
}

func (p *progressRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.labels)
}

type fanout struct{ rec *progressRecorder }

func (f fanout) ForJob(id string) engine.ProgressSink { return f.rec }

func validRequest() Request {
	return Request{
		Entries: []timeline.Entry{
			{Day: "2024-03-01", Image: "a.jpg"},
			{Day: "2024-03-02", Image: "b.jpg"},
		},
		Settings: config.DefaultRenderSettings(),
	}
}

func TestStartRenderValidatesSynchronously(t *testing.T) {
	runner := newGateRunner()
	m := NewManager(runner, Options{})

	req := validRequest()
	req.Settings.DurationPerSlide = 0
	if _, err := m.StartRender(context.Background(), req); !errors.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}

	req = validRequest()
	req.Entries[1].Day = "2024-02-30"
	if _, err := m.StartRender(context.Background(), req); !errors.IsValidation(err) {
		t.Fatalf("Expected validation error for bad day, got %v", err)
	}

	select {
	case id := <-runner.started:
		t.Errorf("Expected no job to run, got %s", id)
	default:
	}
}

func TestRenderLifecycle(t *testing.T) {
	runner := newGateRunner()
	obs := &recordingObserver{}
	fan := &progressRecorder{}
	m := NewManager(runner, Options{Observers: []Observer{obs}, Fanout: fanout{fan}})

	id, err := m.StartRender(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("StartRender failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated id")
	}
	<-runner.started

	sub := &progressRecorder{}
	unsubscribe, err := m.Subscribe(id, sub)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := m.Status(id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Result != nil || snap.Entries != 2 {
		t.Errorf("Unexpected running snapshot %+v", snap)
	}

	close(runner.release)
	res, err := m.Wait(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != engine.StatusCompleted || res.Handle != "renders/"+id+".mp4" {
		t.Errorf("Unexpected result %+v", res)
	}
	unsubscribe()

	snap, _ = m.Status(id)
	if snap.Result == nil || snap.Result.Frames != 60 || snap.FinishedAt == nil {
		t.Errorf("Expected finished snapshot, got %+v", snap)
	}
	if snap.Percent != 100 || snap.Label != "Completed" {
		t.Errorf("Expected last progress 100 Completed, got %f %q", snap.Percent, snap.Label)
	}
	if sub.count() != 1 {
		t.Errorf("Expected subscriber to see the final update, got %d", sub.count())
	}
	if fan.count() != 2 {
		t.Errorf("Expected fan-out to see 2 updates, got %d", fan.count())
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.started) != 1 || len(obs.finished) != 1 || obs.finished[0].Result.Status != engine.StatusCompleted {
		t.Errorf("Unexpected observer calls: %v %+v", obs.started, obs.finished)
	}
}

func TestCancelRender(t *testing.T) {
	runner := newGateRunner()
	m := NewManager(runner, Options{})

	id, err := m.StartRender(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-runner.started

	if err := m.Cancel(id); err != nil {
		t.Fatal(err)
	}
	res, _ := m.Wait(context.Background(), id)
	if res.Status != engine.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", res.Status)
	}
	if snap, _ := m.Status(id); snap.Result.Reason != "CANCELLED: render cancelled" || snap.Result.Code != errors.CodeCancelled {
		t.Errorf("Unexpected result view %+v", snap.Result)
	}
	if err := m.Cancel(id); err != nil {
		t.Errorf("Expected cancelling a finished job to be a no-op, got %v", err)
	}
}

func TestMaxJobsQueuesRenders(t *testing.T) {
	runner := newGateRunner()
	m := NewManager(runner, Options{MaxJobs: 1})

	first := validRequest()
	first.ID = "first"
	second := validRequest()
	second.ID = "second"

	if _, err := m.StartRender(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if got := <-runner.started; got != "first" {
		t.Fatalf("Expected first to start, got %s", got)
	}
	if _, err := m.StartRender(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-runner.started:
		t.Fatalf("Expected %s to wait for a slot", id)
	case <-time.After(20 * time.Millisecond):
	}
	if snap, _ := m.Status("second"); snap.State != engine.StateIdle {
		t.Errorf("Expected queued job to be idle, got %s", snap.State)
	}

	close(runner.release)
	if got := <-runner.started; got != "second" {
		t.Errorf("Expected second to start, got %s", got)
	}
	if _, err := m.Wait(context.Background(), "second"); err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateAndUnknownIDs(t *testing.T) {
	runner := newGateRunner()
	close(runner.release)
	m := NewManager(runner, Options{})

	req := validRequest()
	req.ID = "same"
	if _, err := m.StartRender(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartRender(context.Background(), req); !errors.IsCode(err, errors.CodeConflict) {
		t.Errorf("Expected conflict, got %v", err)
	}

	if _, err := m.Status("nope"); !errors.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
	if err := m.Cancel("nope"); !errors.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := m.Subscribe("nope", &progressRecorder{}); !errors.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// runToEnd starts a render with the given id and waits for its result.
func runToEnd(t *testing.T, m *Manager, id string) {
	t.Helper()
	req := validRequest()
	req.ID = id
	if _, err := m.StartRender(context.Background(), req); err != nil {
		t.Fatalf("StartRender(%s) failed: %v", id, err)
	}
	if _, err := m.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait(%s) failed: %v", id, err)
	}
}

// waitForgotten polls until the manager no longer knows id.
func waitForgotten(t *testing.T, m *Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := m.Status(id); errors.IsNotFound(err) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Expected job %s to be evicted", id)
}

func TestFinishedJobsBeyondCapAreEvicted(t *testing.T) {
	runner := newGateRunner()
	close(runner.release)
	m := NewManager(runner, Options{KeepFinished: 1})

	runToEnd(t, m, "first")
	runToEnd(t, m, "second")

	waitForgotten(t, m, "first")
	if snap, err := m.Status("second"); err != nil || snap.Result == nil {
		t.Errorf("Expected the newest finished job to stay, got %+v (%v)", snap, err)
	}
}

func TestFinishedJobsExpire(t *testing.T) {
	runner := newGateRunner()
	close(runner.release)
	clock := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(runner, Options{Retention: time.Hour})
	m.now = clock.Now

	runToEnd(t, m, "old")
	clock.Advance(2 * time.Hour)
	runToEnd(t, m, "fresh")

	waitForgotten(t, m, "old")
	if _, err := m.Status("fresh"); err != nil {
		t.Errorf("Expected fresh job to stay, got %v", err)
	}
}

func TestRunningJobsAreNotEvicted(t *testing.T) {
	runner := newGateRunner()
	m := NewManager(runner, Options{KeepFinished: 1, MaxJobs: 2})

	req := validRequest()
	req.ID = "running"
	if _, err := m.StartRender(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	<-runner.started

	// Завершённые задачи вытесняют друг друга, но не работающую.
	m.evict()
	if _, err := m.Status("running"); err != nil {
		t.Errorf("Expected running job to stay, got %v", err)
	}
	if err := m.Cancel("running"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Wait(context.Background(), "running"); err != nil {
		t.Fatal(err)
	}
}

func TestShutdownCancelsJobs(t *testing.T) {
	runner := newGateRunner()
	m := NewManager(runner, Options{})
	id, _ := m.StartRender(context.Background(), validRequest())
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	res, _ := m.Wait(context.Background(), id)
	if res.Status != engine.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", res.Status)
	}
	if _, err := m.StartRender(context.Background(), validRequest()); !errors.IsCode(err, errors.CodeUnavailable) {
		t.Errorf("Expected unavailable after shutdown, got %v", err)
	}
}

func TestRequestJSONDefaults(t *testing.T) {
	var req Request
	body := `{"entries":[{"day":"2024-01-01","image":"a.jpg"}],"settings":{"transition":"crossfade"}}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatal(err)
	}
	if req.Settings.Transition != config.TransitionCrossfade {
		t.Errorf("Expected crossfade, got %s", req.Settings.Transition)
	}
	if req.Settings.DurationPerSlide != 2 || req.Settings.AspectRatio != config.Aspect16x9 {
		t.Errorf("Expected defaults for omitted fields, got %+v", req.Settings)
	}

	if err := json.Unmarshal([]byte(`{"entries":[],"bogus":1}`), &req); err == nil {
		t.Error("Expected unknown field to be rejected")
	}
}
