// Package video turns composited frames into a video file. Two sinks share
// one contract: BatchSink writes stills and encodes them in one ffmpeg pass,
// RealtimeSink paces frames into a streaming encoder as they arrive.
package video

import (
	"bytes"
	"context"
	"image"
	"io"
	"os"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/timeline"
)

// PixFmt is the only pixel format the encoders produce: 8-bit 4:2:0, tv range.
const PixFmt = "yuv420p"

// Frame is one output frame. A sink owns the frame after Accept and calls
// Release when it is done with the pixels, whether or not Accept succeeded.
type Frame struct {
	Index int
	Slide int
	Day   timeline.DayKey
	// Blend is the weight of the next slide, 0 for a static frame.
	Blend float64
	Image *image.RGBA

	release func(*image.RGBA)
}

func NewFrame(index, slide int, day timeline.DayKey, blend float64, img *image.RGBA, release func(*image.RGBA)) *Frame {
	return &Frame{Index: index, Slide: slide, Day: day, Blend: blend, Image: img, release: release}
}

// Static reports whether the frame shows a single slide at full opacity.
func (f *Frame) Static() bool {
	return f.Blend == 0
}

// Release hands the pixel buffer back. Safe to call more than once.
func (f *Frame) Release() {
	if f.Image != nil && f.release != nil {
		f.release(f.Image)
	}
	f.Image = nil
}

// Artifact is a finished video, either on disk (Path) or in memory (Data).
type Artifact struct {
	Path        string
	Data        []byte
	ContentType string
	Ext         string
	Frames      int
}

// Open reads the artifact back.
func (a Artifact) Open() (io.ReadCloser, error) {
	if a.Path != "" {
		return os.Open(a.Path)
	}
	return io.NopCloser(bytes.NewReader(a.Data)), nil
}

// Sink consumes frames in order. Accept and Finish are called by a single
// producer; Abort may be called from any goroutine and is idempotent.
type Sink interface {
	Accept(ctx context.Context, f *Frame) error
	Finish(ctx context.Context) (Artifact, error)
	Abort()
}

// Profile describes the stream every frame must match.
type Profile struct {
	Width  int
	Height int
	FPS    int
	PixFmt string
}

func ProfileFor(s config.RenderSettings) Profile {
	w, h := s.Size()
	return Profile{Width: w, Height: h, FPS: config.FPS, PixFmt: PixFmt}
}

// Validate checks what H.264 in yuv420p can carry.
func (p Profile) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return errors.Configurationf("frame size %dx%d is empty", p.Width, p.Height)
	case p.Width%2 != 0 || p.Height%2 != 0:
		return errors.Configurationf("frame size %dx%d must be even for %s", p.Width, p.Height, PixFmt)
	case p.FPS <= 0:
		return errors.Configurationf("frame rate %d must be positive", p.FPS)
	case p.PixFmt != PixFmt:
		return errors.Configurationf("pixel format %q is not supported, want %s", p.PixFmt, PixFmt)
	}
	return nil
}

const (
	stateOpen = iota
	stateFinished
	stateAborted
)

func errClosed(op string) error {
	return errors.New(errors.CodeEncode, "sink is closed").WithField("op", op)
}
