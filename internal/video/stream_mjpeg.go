package video

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"

	"github.com/icza/mjpeg"
)

// MJPEGStream writes a Motion-JPEG AVI without any external process.
type MJPEGStream struct {
	Output  string
	Profile Profile
	// Quality is the JPEG quality, 1..100.
	Quality int

	w   mjpeg.AviWriter
	buf bytes.Buffer
}

func (s *MJPEGStream) Start(ctx context.Context) error {
	if err := s.Profile.Validate(); err != nil {
		return err
	}
	if s.Quality <= 0 || s.Quality > 100 {
		s.Quality = 90
	}
	w, err := mjpeg.New(s.Output, int32(s.Profile.Width), int32(s.Profile.Height), int32(s.Profile.FPS))
	if err != nil {
		return err
	}
	s.w = w
	return nil
}

func (s *MJPEGStream) WriteFrame(img *image.RGBA) error {
	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, img, &jpeg.Options{Quality: s.Quality}); err != nil {
		return err
	}
	return s.w.AddFrame(s.buf.Bytes())
}

func (s *MJPEGStream) Close() (Artifact, error) {
	if err := s.w.Close(); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: s.Output, ContentType: "video/x-msvideo", Ext: "avi"}, nil
}

func (s *MJPEGStream) Kill() {
	if s.w == nil {
		return
	}
	_ = s.w.Close()
	_ = os.Remove(s.Output)
}
