package video

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

const (
	StillJPEG = "jpeg"
	StillPNG  = "png"
)

type BatchConfig struct {
	// Dir receives stills and the manifest. It belongs to one job.
	Dir string
	// Output defaults to Dir/render.mp4.
	Output      string
	Profile     Profile
	Encoder     EncoderOptions
	StillFormat string
	JPEGQuality int
	Runner      CommandRunner
	Log         *logger.Logger
}

// BatchSink writes one still per visually distinct frame and encodes the
// whole sequence when finished. Runs of static frames of one slide share a
// still; every crossfade frame gets its own.
type BatchSink struct {
	cfg BatchConfig

	mu         sync.Mutex
	state      int
	manifest   Manifest
	written    []string
	lastSlide  int
	lastStatic bool
	buf        bytes.Buffer
}

func NewBatchSink(cfg BatchConfig) *BatchSink {
	if cfg.Output == "" {
		cfg.Output = filepath.Join(cfg.Dir, "render.mp4")
	}
	if cfg.StillFormat == "" {
		cfg.StillFormat = StillJPEG
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 92
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	return &BatchSink{
		cfg:      cfg,
		manifest: Manifest{FPS: cfg.Profile.FPS},
	}
}

func (s *BatchSink) Accept(ctx context.Context, f *Frame) error {
	defer f.Release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return errClosed("batch.accept")
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeCancelled, "batch.accept", "render cancelled")
	}

	if f.Static() && s.lastStatic && s.lastSlide == f.Slide && len(s.manifest.Entries) > 0 {
		s.manifest.Extend()
		return nil
	}

	path := filepath.Join(s.cfg.Dir, fmt.Sprintf("frame_%06d.%s", f.Index, s.ext()))
	if err := s.writeStill(path, f); err != nil {
		return errors.WrapWithCode(err, errors.CodeEncode, "batch.still", "frame could not be written").
			WithField("frame", f.Index)
	}
	s.written = append(s.written, path)
	s.manifest.Add(path)
	s.lastSlide = f.Slide
	s.lastStatic = f.Static()
	return nil
}

func (s *BatchSink) ext() string {
	if s.cfg.StillFormat == StillPNG {
		return "png"
	}
	return "jpg"
}

func (s *BatchSink) writeStill(path string, f *Frame) error {
	s.buf.Reset()
	var err error
	if s.cfg.StillFormat == StillPNG {
		err = png.Encode(&s.buf, f.Image)
	} else {
		err = jpeg.Encode(&s.buf, f.Image, &jpeg.Options{Quality: s.cfg.JPEGQuality})
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, s.buf.Bytes(), 0644)
}

// Finish validates the stream, writes the manifest and runs ffmpeg. Nothing
// is spawned when validation fails.
func (s *BatchSink) Finish(ctx context.Context) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return Artifact{}, errClosed("batch.finish")
	}
	s.state = stateFinished

	if err := s.cfg.Profile.Validate(); err != nil {
		return Artifact{}, err
	}
	if err := s.manifest.Validate(); err != nil {
		return Artifact{}, err
	}

	manifestPath := filepath.Join(s.cfg.Dir, "manifest.ffconcat")
	mf, err := os.Create(manifestPath)
	if err != nil {
		return Artifact{}, errors.WrapWithCode(err, errors.CodeEncode, "batch.manifest", "manifest could not be written")
	}
	_, werr := s.manifest.WriteTo(mf)
	if cerr := mf.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return Artifact{}, errors.WrapWithCode(werr, errors.CodeEncode, "batch.manifest", "manifest could not be written")
	}

	args := ConcatArgs(manifestPath, s.cfg.Output, s.cfg.Profile, s.cfg.Encoder)
	s.cfg.Log.Debug("encoding stills", "stills", len(s.manifest.Entries), "frames", s.manifest.Frames(), "encoder", s.cfg.Encoder.Encoder)

	if out, err := s.cfg.Runner.Run(ctx, s.cfg.Encoder.binary(), args); err != nil {
		if ctx.Err() != nil {
			return Artifact{}, errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "batch.encode", "render cancelled")
		}
		return Artifact{}, errors.WrapWithCode(err, errors.CodeEncode, "batch.encode", "video could not be encoded").
			WithField("ffmpeg_output", tail(out, 2048))
	}

	return Artifact{
		Path:        s.cfg.Output,
		ContentType: "video/mp4",
		Ext:         "mp4",
		Frames:      s.manifest.Frames(),
	}, nil
}

// Abort removes every still written so far.
func (s *BatchSink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateAborted {
		return
	}
	s.state = stateAborted
	for _, p := range s.written {
		_ = os.Remove(p)
	}
	s.written = nil
	_ = os.Remove(filepath.Join(s.cfg.Dir, "manifest.ffconcat"))
}
