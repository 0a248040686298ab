package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

// Runner executes one job to completion. *engine.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, job *engine.Job, progress engine.ProgressSink) engine.Result
}

// Observer is told when jobs start and finish, e.g. to keep a catalog.
type Observer interface {
	JobStarted(ctx context.Context, req Request, snap Snapshot) error
	JobFinished(ctx context.Context, snap Snapshot) error
}

// ProgressFanout supplies an extra progress sink per job, e.g. Redis.
type ProgressFanout interface {
	ForJob(id string) engine.ProgressSink
}

type Options struct {
	// MaxJobs bounds concurrently running renders; queued jobs wait.
	MaxJobs int

	// Finished jobs are forgotten after Retention, and beyond the newest
	// KeepFinished of them.
	Retention    time.Duration
	KeepFinished int
	Observers    []Observer
	Fanout       ProgressFanout
	Log          *logger.Logger
}

// Manager owns every job started through it.
type Manager struct {
	runner Runner
	opts   Options
	log    *logger.Logger
	sem    chan struct{}
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*tracked
}

func NewManager(runner Runner, opts Options) *Manager {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 2
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.KeepFinished <= 0 {
		opts.KeepFinished = 100
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner: runner,
		opts:   opts,
		log:    log.WithComponent("jobs"),
		sem:    make(chan struct{}, opts.MaxJobs),
		now:    func() time.Time { return time.Now().UTC() },
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*tracked),
	}
}

// StartRender validates req and starts the job in the background. Invalid
// requests are rejected here, before any job exists.
func (m *Manager) StartRender(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if m.ctx.Err() != nil {
		return "", errors.New(errors.CodeUnavailable, "job manager is shut down")
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	t := newTracked(engine.NewJob(id, req.Entries, req.Settings), m.now())

	m.mu.Lock()
	if _, exists := m.jobs[id]; exists {
		m.mu.Unlock()
		return "", errors.Newf(errors.CodeConflict, "job %s already exists", id)
	}
	m.jobs[id] = t
	m.mu.Unlock()

	if m.opts.Fanout != nil {
		t.subscribe(m.opts.Fanout.ForJob(id))
	}

	snap := t.snapshot()
	for _, o := range m.opts.Observers {
		if err := o.JobStarted(ctx, req, snap); err != nil {
			m.log.LogError(ctx, "observer rejected job start", err, "job_id", id)
		}
	}

	m.wg.Add(1)
	go m.run(t)

	m.log.Info("render accepted", "job_id", id, "entries", len(req.Entries))
	return id, nil
}

func (m *Manager) run(t *tracked) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-t.cancelled:
	case <-m.ctx.Done():
		t.job.Cancel()
	}

	res := m.runner.Run(m.ctx, t.job, t)
	t.finish(res, m.now())

	snap := t.snapshot()
	for _, o := range m.opts.Observers {
		if err := o.JobFinished(context.Background(), snap); err != nil {
			m.log.LogError(context.Background(), "observer failed on job finish", err, "job_id", t.job.ID)
		}
	}
	m.evict()
}

// evict forgets finished jobs older than Retention and all but the newest
// KeepFinished. Running and queued jobs are never evicted.
func (m *Manager) evict() {
	cutoff := m.now().Add(-m.opts.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	var finished []*tracked
	for id, t := range m.jobs {
		at, ok := t.finishedAt()
		if !ok {
			continue
		}
		if at.Before(cutoff) {
			delete(m.jobs, id)
			continue
		}
		finished = append(finished, t)
	}
	if extra := len(finished) - m.opts.KeepFinished; extra > 0 {
		sort.Slice(finished, func(i, j int) bool {
			a, _ := finished[i].finishedAt()
			b, _ := finished[j].finishedAt()
			return a.Before(b)
		})
		for _, t := range finished[:extra] {
			delete(m.jobs, t.job.ID)
		}
	}
}

func (m *Manager) get(id string) (*tracked, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	return t, nil
}

// Cancel requests cancellation. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) error {
	t, err := m.get(id)
	if err != nil {
		return err
	}
	t.requestCancel()
	return nil
}

// Subscribe adds a progress sink for the job. The returned function removes it.
func (m *Manager) Subscribe(id string, sink engine.ProgressSink) (func(), error) {
	t, err := m.get(id)
	if err != nil {
		return nil, err
	}
	key := t.subscribe(sink)
	return func() { t.unsubscribe(key) }, nil
}

func (m *Manager) Status(id string) (Snapshot, error) {
	t, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return t.snapshot(), nil
}

// Done is closed when the job has a result.
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	t, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return t.done, nil
}

// Wait blocks until the job ends or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (engine.Result, error) {
	t, err := m.get(id)
	if err != nil {
		return engine.Result{}, err
	}
	select {
	case <-t.done:
		return t.result(), nil
	case <-ctx.Done():
		return engine.Result{}, errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "jobs.wait", "wait cancelled")
	}
}

// Shutdown cancels every running job and waits for them to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tracked is a job plus what observers need: progress and the result.
type tracked struct {
	job     *engine.Job
	created time.Time
	done    chan struct{}

	cancelOnce sync.Once
	cancelled  chan struct{}

	mu       sync.Mutex
	percent  float64
	label    string
	subs     map[int]engine.ProgressSink
	nextSub  int
	res      engine.Result
	finished time.Time
}

func newTracked(job *engine.Job, created time.Time) *tracked {
	return &tracked{
		job:       job,
		created:   created,
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
		subs:      make(map[int]engine.ProgressSink),
	}
}

// OnProgress fans one update out to every subscriber.
func (t *tracked) OnProgress(percent float64, label string) {
	t.mu.Lock()
	t.percent, t.label = percent, label
	subs := make([]engine.ProgressSink, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.OnProgress(percent, label)
	}
}

func (t *tracked) subscribe(sink engine.ProgressSink) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.nextSub
	t.nextSub++
	t.subs[key] = sink
	return key
}

func (t *tracked) unsubscribe(key int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, key)
}

func (t *tracked) requestCancel() {
	t.job.Cancel()
	t.cancelOnce.Do(func() { close(t.cancelled) })
}

func (t *tracked) finish(res engine.Result, at time.Time) {
	t.mu.Lock()
	t.res = res
	t.finished = at
	t.mu.Unlock()
	close(t.done)
}

func (t *tracked) finishedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished, !t.finished.IsZero()
}

func (t *tracked) result() engine.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res
}

func (t *tracked) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		ID:        t.job.ID,
		State:     t.job.State(),
		Percent:   t.percent,
		Label:     t.label,
		Entries:   len(t.job.Entries),
		CreatedAt: t.created,
	}
	if !t.finished.IsZero() {
		fin := t.finished
		s.FinishedAt = &fin
		s.Result = viewOf(t.res)
	}
	return s
}
