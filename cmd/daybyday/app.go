package main

import (
	"context"
	"os"

	"github.com/ivlev/daybyday/internal/analyzer"
	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/pkg/logger"
	"github.com/ivlev/daybyday/internal/renderer"
	"github.com/ivlev/daybyday/internal/source"
	"github.com/ivlev/daybyday/internal/system"
	"github.com/ivlev/daybyday/internal/video"
)

// loadConfig applies --config and the log flags on top of the usual layers.
func loadConfig(defaultFormat string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	switch {
	case logFormat != "":
		cfg.Log.Format = logFormat
	case defaultFormat != "" && configPath == "" && os.Getenv("DAYBYDAY_LOG_FORMAT") == "":
		cfg.Log.Format = defaultFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, service string) *logger.Logger {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		AddSource:   cfg.Log.Source,
		ServiceName: service,
	})
}

// newPipeline wires everything a render needs except the artifact store.
func newPipeline(ctx context.Context, cfg *config.Config, store engine.ArtifactStore, log *logger.Logger) (*engine.Pipeline, error) {
	files := source.NewFileSource(cfg.Source.Root, cfg.Source.HTTPTimeout, cfg.Render.DocumentDPI)
	files.MaxPixels = cfg.Source.MaxMegapixels * 1_000_000
	var src source.Source = files
	if cfg.Render.DetectRegions {
		det, err := analyzer.NewDetector("contrast")
		if err != nil {
			return nil, err
		}
		src = &source.AnalyzingSource{Source: src, Detector: det}
	}

	sinks := video.NewFactory(ctx, cfg.Render, log)
	log.Info("encoder selected", "mode", cfg.Render.Mode, "encoder", sinks.Encoder.Encoder)

	workers := cfg.Render.Workers
	if cfg.Render.Mode == config.ModeRealtime {
		// Один производитель: кадры уходят в поток в порядке загрузки.
		workers = 1
	}

	return &engine.Pipeline{
		Source: src,
		Sinks:  sinks,
		Store:  store,
		Options: renderer.Options{
			Policy: renderer.AnchorPolicy{TopBias: cfg.Render.Anchor.TopBias, PreferHint: cfg.Render.Anchor.PreferHint},
			Scaler: renderer.ScalerByName(cfg.Render.Scaler),
		},
		TempRoot:   cfg.Render.TempDir,
		Workers:    workers,
		YieldEvery: cfg.Render.YieldEvery,
		Pool:       system.NewImagePool(),
		Log:        log,
	}, nil
}
