package worker

import (
	"context"
	"time"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

// Queue hands out raw request payloads. *queue.RedisQueue implements it.
type Queue interface {
	Pop(ctx context.Context) (string, error)
}

// Renders runs the popped requests. *jobs.Manager implements it.
type Renders interface {
	StartRender(ctx context.Context, req jobs.Request) (string, error)
	Wait(ctx context.Context, id string) (engine.Result, error)
}

type Deps struct {
	Queue   Queue
	Renders Renders
	Log     *logger.Logger

	// PopTimeout bounds one blocking pop. Default 30s.
	PopTimeout time.Duration
	// Backoff is the pause after a queue error. Default 1s.
	Backoff time.Duration
}
