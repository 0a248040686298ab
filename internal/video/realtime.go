package video

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
)

// StreamEncoder consumes frames one at a time, in order.
type StreamEncoder interface {
	Start(ctx context.Context) error
	WriteFrame(img *image.RGBA) error
	Close() (Artifact, error)
	// Kill stops the encoder and discards its output.
	Kill()
}

type RealtimeConfig struct {
	Encoder StreamEncoder
	// Buffer is the channel capacity; a full buffer blocks Accept.
	Buffer int
	// Pace is the interval between frames, 0 writes as fast as possible.
	Pace time.Duration
	Log  *logger.Logger
}

// RealtimeSink hands frames to a writer goroutine that feeds the encoder at
// a steady pace.
type RealtimeSink struct {
	enc  StreamEncoder
	pace time.Duration
	log  *logger.Logger

	frames chan *Frame
	quit   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	state   int
	err     error
	written int
}

// NewRealtimeSink starts the encoder and the writer goroutine.
func NewRealtimeSink(ctx context.Context, cfg RealtimeConfig) (*RealtimeSink, error) {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 8
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	if err := cfg.Encoder.Start(ctx); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeEncode, "realtime.start", "stream encoder could not start")
	}

	s := &RealtimeSink{
		enc:    cfg.Encoder,
		pace:   cfg.Pace,
		log:    cfg.Log,
		frames: make(chan *Frame, cfg.Buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *RealtimeSink) run() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.pace > 0 {
		t := time.NewTicker(s.pace)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-s.quit:
			s.drain()
			return
		case f, ok := <-s.frames:
			if !ok {
				return
			}
			if tick != nil {
				select {
				case <-tick:
				case <-s.quit:
					f.Release()
					s.drain()
					return
				}
			}
			s.write(f)
		}
	}
}

func (s *RealtimeSink) write(f *Frame) {
	defer f.Release()

	s.mu.Lock()
	failed := s.err != nil
	s.mu.Unlock()
	if failed {
		return
	}

	err := s.enc.WriteFrame(f.Image)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = errors.WrapWithCode(err, errors.CodeEncode, "realtime.write", "frame could not be encoded").
			WithField("frame", f.Index)
		return
	}
	s.written++
}

func (s *RealtimeSink) drain() {
	for {
		select {
		case f, ok := <-s.frames:
			if !ok {
				return
			}
			f.Release()
		default:
			return
		}
	}
}

// Accept blocks while the buffer is full.
func (s *RealtimeSink) Accept(ctx context.Context, f *Frame) error {
	s.mu.Lock()
	state, err := s.state, s.err
	s.mu.Unlock()

	if state != stateOpen {
		f.Release()
		return errClosed("realtime.accept")
	}
	if err != nil {
		f.Release()
		return err
	}

	select {
	case s.frames <- f:
		return nil
	case <-ctx.Done():
		f.Release()
		return errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "realtime.accept", "render cancelled")
	case <-s.quit:
		f.Release()
		return errClosed("realtime.accept")
	}
}

// Finish waits for buffered frames to be written and closes the encoder.
func (s *RealtimeSink) Finish(ctx context.Context) (Artifact, error) {
	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return Artifact{}, errClosed("realtime.finish")
	}
	s.state = stateFinished
	s.mu.Unlock()

	close(s.frames)
	select {
	case <-s.done:
	case <-ctx.Done():
		close(s.quit)
		<-s.done
		s.enc.Kill()
		return Artifact{}, errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "realtime.finish", "render cancelled")
	}

	s.mu.Lock()
	err, written := s.err, s.written
	s.mu.Unlock()
	if err != nil {
		s.enc.Kill()
		return Artifact{}, err
	}

	art, err := s.enc.Close()
	if err != nil {
		return Artifact{}, errors.WrapWithCode(err, errors.CodeEncode, "realtime.close", "video could not be encoded")
	}
	art.Frames = written
	s.log.Debug("stream finished", "frames", written)
	return art, nil
}

// Abort stops the writer and kills the encoder. No-op once finished.
func (s *RealtimeSink) Abort() {
	s.mu.Lock()
	prev := s.state
	if prev == stateOpen {
		s.state = stateAborted
	}
	s.mu.Unlock()

	if prev != stateOpen {
		return
	}
	close(s.quit)
	<-s.done
	s.enc.Kill()
}
