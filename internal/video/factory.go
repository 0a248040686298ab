package video

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
	"github.com/ivlev/daybyday/internal/system"
)

// Factory builds the sink for one job according to render.mode.
type Factory struct {
	Mode         string
	StreamFormat string
	StillFormat  string
	Encoder      EncoderOptions
	Pace         bool
	Buffer       int
	Runner       CommandRunner
	Log          *logger.Logger
}

// NewFactory resolves the "auto" encoder by probing ffmpeg once.
func NewFactory(ctx context.Context, cfg config.RenderConfig, log *logger.Logger) *Factory {
	enc := cfg.Encoder
	if enc == "" || enc == "auto" {
		enc = system.BestH264Encoder(ctx, cfg.FFmpeg)
	}
	return &Factory{
		Mode:         cfg.Mode,
		StreamFormat: cfg.StreamFormat,
		StillFormat:  cfg.StillFormat,
		Encoder:      EncoderOptions{FFmpeg: cfg.FFmpeg, Encoder: enc, Quality: cfg.Quality},
		Pace:         cfg.Pace,
		Buffer:       cfg.BufferFrames,
		Log:          log,
	}
}

// NewSink returns a sink writing into dir, the job's temp directory.
func (f *Factory) NewSink(ctx context.Context, dir string, settings config.RenderSettings) (Sink, error) {
	profile := ProfileFor(settings)
	log := f.Log
	if log == nil {
		log = logger.Discard()
	}

	switch f.Mode {
	case config.ModeBatch, "":
		return NewBatchSink(BatchConfig{
			Dir:         dir,
			Profile:     profile,
			Encoder:     f.Encoder,
			StillFormat: f.StillFormat,
			Runner:      f.Runner,
			Log:         log.WithComponent("batch-sink"),
		}), nil
	case config.ModeRealtime:
		var enc StreamEncoder
		switch f.StreamFormat {
		case config.StreamMJPEG:
			enc = &MJPEGStream{Output: filepath.Join(dir, "render.avi"), Profile: profile}
		default:
			enc = &FFmpegStream{Output: filepath.Join(dir, "render.mp4"), Profile: profile, Options: f.Encoder}
		}
		var pace time.Duration
		if f.Pace {
			pace = time.Second / time.Duration(profile.FPS)
		}
		return NewRealtimeSink(ctx, RealtimeConfig{
			Encoder: enc,
			Buffer:  f.Buffer,
			Pace:    pace,
			Log:     log.WithComponent("realtime-sink"),
		})
	default:
		return nil, errors.Configurationf("unknown render mode %q", f.Mode)
	}
}
