// Package engine runs one render: it loads every day's photo, schedules
// frames in timeline order and drives a sink to a finished artifact.
package engine

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
	"github.com/ivlev/daybyday/internal/renderer"
	"github.com/ivlev/daybyday/internal/source"
	"github.com/ivlev/daybyday/internal/system"
	"github.com/ivlev/daybyday/internal/timeline"
	"github.com/ivlev/daybyday/internal/video"
)

// SinkFactory creates the sink for a job inside its temp directory.
type SinkFactory interface {
	NewSink(ctx context.Context, dir string, settings config.RenderSettings) (video.Sink, error)
}

// ArtifactStore keeps finished videos beyond the job's temp directory.
type ArtifactStore interface {
	Persist(ctx context.Context, jobID string, a video.Artifact) (string, error)
}

// Pipeline holds what jobs share. Every Run gets its own temp dir, sink and
// compositor.
type Pipeline struct {
	Source source.Source
	Sinks  SinkFactory
	Store  ArtifactStore
	// Compositor options for every job.
	Options renderer.Options
	// TempRoot is where job directories are created, os.TempDir when empty.
	TempRoot string
	// Workers bounds parallel decoding. 0 means system.RecommendedWorkers.
	Workers int
	// YieldEvery is the number of frames between progress reports.
	YieldEvery int
	Pool       *system.ImagePool
	Log        *logger.Logger
}

func (p *Pipeline) log() *logger.Logger {
	if p.Log == nil {
		return logger.Discard()
	}
	return p.Log
}

// Run renders job and reports how it ended. It never panics on bad input:
// validation problems come back as a Failed result.
func (p *Pipeline) Run(ctx context.Context, job *Job, progress ProgressSink) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.bind(cancel)

	log := p.log().WithJobID(job.ID).WithComponent("pipeline")
	ctx = logger.ContextWithJobID(ctx, job.ID)
	rep := newReporter(progress)

	tl, err := timeline.New(job.Entries)
	if err == nil {
		err = job.Settings.Validate()
	}
	if err != nil {
		return p.fail(job, log, err, 0, nil)
	}

	dir, err := os.MkdirTemp(p.TempRoot, "daybyday_")
	if err != nil {
		return p.fail(job, log, errors.WrapWithCode(err, errors.CodeInternal, "pipeline.tempdir", "temp directory could not be created"), 0, nil)
	}
	defer os.RemoveAll(dir)

	comp, err := renderer.New(job.Settings, p.Options)
	if err != nil {
		return p.fail(job, log, errors.WrapWithCode(err, errors.CodeInternal, "pipeline.compositor", "compositor could not be created"), 0, nil)
	}

	if err := job.machine.Transition(StateIdle, StateLoading); err != nil {
		return p.fail(job, log, err, 0, nil)
	}
	log.Info("render started", "entries", tl.Len(), "aspect", job.Settings.AspectRatio, "transition", job.Settings.Transition)

	plates, err := p.load(ctx, job, tl, comp, rep)
	if err != nil {
		return p.end(job, log, err, 0, nil)
	}
	placeholders := placeholderDays(plates)

	sink, err := p.Sinks.NewSink(ctx, dir, job.Settings)
	if err != nil {
		return p.end(job, log, errors.Wrap(err, "pipeline.sink", "sink could not be created"), 0, placeholders)
	}

	if err := job.machine.Transition(StateLoading, StateRendering); err != nil {
		sink.Abort()
		return p.fail(job, log, err, 0, placeholders)
	}

	frames, err := p.render(ctx, job, tl, comp, plates, sink, rep)
	if err != nil {
		sink.Abort()
		return p.end(job, log, err, frames, placeholders)
	}

	if err := job.machine.Transition(StateRendering, StateFinalizing); err != nil {
		sink.Abort()
		return p.fail(job, log, err, frames, placeholders)
	}
	rep.report(99, labelFinalizing)

	art, err := sink.Finish(ctx)
	if err != nil {
		sink.Abort()
		return p.end(job, log, p.interrupted(ctx, job, err), frames, placeholders)
	}

	handle, err := p.Store.Persist(ctx, job.ID, art)
	if err != nil {
		return p.end(job, log, p.interrupted(ctx, job, err), frames, placeholders)
	}

	if err := job.machine.Transition(StateFinalizing, StateCompleted); err != nil {
		return p.fail(job, log, err, frames, placeholders)
	}
	rep.report(100, labelCompleted)
	log.Info("render completed", "frames", frames, "placeholders", len(placeholders), "handle", handle)

	return Result{
		Status:       StatusCompleted,
		Handle:       handle,
		Frames:       frames,
		Placeholders: placeholders,
	}
}

// load decodes every entry into a plate, keeping timeline order. Entries
// that fail to decode become placeholder plates.
func (p *Pipeline) load(ctx context.Context, job *Job, tl *timeline.Timeline, comp *renderer.Compositor, rep *reporter) ([]*renderer.Plate, error) {
	n := tl.Len()
	plates := make([]*renderer.Plate, n)
	log := p.log().WithJobID(job.ID).WithComponent("loader")

	workers := p.Workers
	if workers <= 0 {
		b := comp.Bounds()
		workers = system.RecommendedWorkers(b.Dx(), b.Dy())
	}

	rep.report(5, labelLoading)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	loaded := 0

	for i := 0; i < n; i++ {
		if job.Cancelled() || gctx.Err() != nil {
			break
		}
		entry := tl.EntryAt(i)
		g.Go(func() error {
			if job.Cancelled() {
				return errCancelled("pipeline.load")
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			var img image.Image
			var hint *timeline.Region
			d, err := p.Source.Decode(gctx, entry.Image)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				log.Warn("image replaced by placeholder", "day", entry.Day, "error", err.Error())
			default:
				img, hint = d.Image, d.Region
			}
			if entry.FaceRegion != nil {
				if r, ok := entry.FaceRegion.Clamped(); ok {
					hint = &r
				} else {
					log.Warn("face region ignored", "day", entry.Day, "region", *entry.FaceRegion)
				}
			}
			plates[i] = comp.Prepare(img, entry.Day, hint)

			mu.Lock()
			loaded++
			rep.report(5+15*float64(loaded)/float64(n), fmt.Sprintf("Loaded image %d/%d", loaded, n))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, p.interrupted(ctx, job, err)
	}
	if job.Cancelled() || ctx.Err() != nil {
		return nil, errCancelled("pipeline.load")
	}
	return plates, nil
}

// render feeds frames to the sink in order and returns how many it accepted.
func (p *Pipeline) render(ctx context.Context, job *Job, tl *timeline.Timeline, comp *renderer.Compositor, plates []*renderer.Plate, sink video.Sink, rep *reporter) (int, error) {
	s := job.Settings
	perSlide := s.FramesPerSlide()
	window := s.TransitionFrames()
	total := s.TotalFrames(len(plates))

	yield := p.YieldEvery
	if yield <= 0 {
		yield = 10
	}
	pool := p.Pool
	if pool == nil {
		pool = system.NewImagePool()
	}
	bounds := comp.Bounds()

	idx := 0
	for i, primary := range plates {
		var next *renderer.Plate
		if window > 0 {
			next = transitionTarget(tl, plates, i)
		}

		for f := 0; f < perSlide; f++ {
			if job.Cancelled() || ctx.Err() != nil {
				return idx, errCancelled("pipeline.render")
			}
			if idx%yield == 0 {
				rep.report(20+80*float64(idx)/float64(total), labelRendering)
				runtime.Gosched()
			}

			var secondary *renderer.Plate
			blend := 0.0
			if next != nil && f >= perSlide-window {
				secondary = next
				blend = renderer.Ramp(f-(perSlide-window), window)
			}

			buf := pool.Get(bounds)
			comp.Composite(buf, primary, secondary, blend)
			frame := video.NewFrame(idx, i, primary.Day, blend, buf, pool.Put)
			if err := sink.Accept(ctx, frame); err != nil {
				return idx, p.interrupted(ctx, job, err)
			}
			idx++
		}
		// Слайд больше не нужен ни одному кадру.
		plates[i] = nil
	}
	return idx, nil
}

// transitionTarget is the plate slide i fades into, nil for the last slide.
// Plates are indexed like the timeline.
func transitionTarget(tl *timeline.Timeline, plates []*renderer.Plate, i int) *renderer.Plate {
	if _, ok := tl.NeighborAfter(i); !ok {
		return nil
	}
	return plates[i+1]
}

// interrupted turns any error seen after cancellation into CANCELLED.
func (p *Pipeline) interrupted(ctx context.Context, job *Job, err error) error {
	if job.Cancelled() || ctx.Err() != nil || errors.IsCode(err, errors.CodeCancelled) {
		return errCancelled("pipeline")
	}
	return err
}

func (p *Pipeline) end(job *Job, log *logger.Logger, err error, frames int, placeholders []timeline.DayKey) Result {
	if errors.IsCode(err, errors.CodeCancelled) {
		if terr := job.machine.End(StateCancelled); terr != nil {
			log.LogError(context.Background(), "state transition failed", terr)
		}
		log.Info("render cancelled", "frames", frames)
		return Result{Status: StatusCancelled, Frames: frames, Placeholders: placeholders, Err: err}
	}
	return p.fail(job, log, err, frames, placeholders)
}

func (p *Pipeline) fail(job *Job, log *logger.Logger, err error, frames int, placeholders []timeline.DayKey) Result {
	if terr := job.machine.End(StateFailed); terr != nil {
		log.LogError(context.Background(), "state transition failed", terr)
	}
	log.LogError(context.Background(), "render failed", err, "frames", frames)
	return Result{Status: StatusFailed, Frames: frames, Placeholders: placeholders, Err: err}
}

func errCancelled(op string) error {
	return errors.New(errors.CodeCancelled, "render cancelled").WithField("op", op)
}

func placeholderDays(plates []*renderer.Plate) []timeline.DayKey {
	var days []timeline.DayKey
	for _, pl := range plates {
		if pl.Placeholder {
			days = append(days, pl.Day)
		}
	}
	return days
}
