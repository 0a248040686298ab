// Package worker renders requests taken from the queue, one at a time.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

// Run pops requests until ctx ends. It only returns ctx.Err().
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	popTimeout := d.PopTimeout
	if popTimeout <= 0 {
		popTimeout = 30 * time.Second
	}
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		popCtx, cancel := context.WithTimeout(ctx, popTimeout)
		payload, err := d.Queue.Pop(popCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Warn("queue pop error, retrying", "error", err.Error())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if payload == "" {
			continue
		}

		process(ctx, d.Renders, log, payload)
	}
}

func process(ctx context.Context, renders Renders, log *logger.Logger, payload string) {
	var req jobs.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		log.Error("discarding malformed render request", "error", err.Error(), "size", len(payload))
		return
	}

	id, err := renders.StartRender(ctx, req)
	if err != nil {
		log.Error("render request rejected",
			"job_id", req.ID,
			"code", string(errors.GetCode(err)),
			"error", errors.PublicMessage(err),
		)
		return
	}

	jobLog := log.WithJobID(id)
	jobCtx := logger.ContextWithJobID(ctx, id)
	jobLog.Info("processing render", "entries", len(req.Entries))
	start := time.Now()

	res, err := renders.Wait(jobCtx, id)
	if err != nil {
		jobLog.Warn("stopped waiting for render", "error", err.Error())
		return
	}

	switch res.Status {
	case engine.StatusCompleted:
		jobLog.Info("render completed",
			"handle", res.Handle,
			"frames", res.Frames,
			"placeholders", len(res.Placeholders),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	case engine.StatusCancelled:
		jobLog.Info("render cancelled", "duration_ms", time.Since(start).Milliseconds())
	default:
		jobLog.Error("render failed",
			"code", string(errors.GetCode(res.Err)),
			"reason", res.Reason(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
