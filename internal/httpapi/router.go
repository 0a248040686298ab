// Package httpapi exposes render jobs over HTTP.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/httpkit"
	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/logger"
	"github.com/ivlev/daybyday/internal/pkg/middleware"
)

// Renders is the job surface the handlers drive. *jobs.Manager implements it.
type Renders interface {
	StartRender(ctx context.Context, req jobs.Request) (string, error)
	Cancel(id string) error
	Subscribe(id string, sink engine.ProgressSink) (func(), error)
	Status(id string) (jobs.Snapshot, error)
	Done(id string) (<-chan struct{}, error)
}

// Artifacts streams persisted renders back. *artifact.Store implements it.
type Artifacts interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, string, int64, error)
}

// Check is a dependency probe for GET /health?deep=true.
type Check func(ctx context.Context) error

type Deps struct {
	Renders     Renders
	Artifacts   Artifacts
	Checks      map[string]Check
	CORSOrigins []string
	Log         *logger.Logger
}

type Handler struct {
	renders   Renders
	artifacts Artifacts
	checks    map[string]Check
	log       *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("http")

	h := &Handler{
		renders:   d.Renders,
		artifacts: d.Artifacts,
		checks:    d.Checks,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.CORSOrigins,
		ExposedHeaders: []string{middleware.RequestIDHeader, "Location"},
	}))

	r.Get("/health", h.Health)

	r.Route("/renders", func(r chi.Router) {
		r.Post("/", h.PostRender)
		r.Get("/{renderId}", h.GetRender)
		r.Delete("/{renderId}", h.DeleteRender)
		r.Get("/{renderId}/events", h.RenderEvents)
		r.Get("/{renderId}/artifact", h.RenderArtifact)
	})

	return r
}
