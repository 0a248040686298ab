package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
)

// FFmpegStream pipes raw RGBA frames into ffmpeg and collects fragmented mp4
// from its stdout into Output.
type FFmpegStream struct {
	Output  string
	Profile Profile
	Options EncoderOptions

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *os.File
	stderr bytes.Buffer
}

func (s *FFmpegStream) Start(ctx context.Context) error {
	if err := s.Profile.Validate(); err != nil {
		return err
	}
	out, err := os.Create(s.Output)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, s.Options.binary(), StreamArgs(s.Profile, s.Options)...)
	cmd.Stdout = out
	cmd.Stderr = &s.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		out.Close()
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		out.Close()
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	s.cmd, s.stdin, s.out = cmd, stdin, out
	return nil
}

func (s *FFmpegStream) WriteFrame(img *image.RGBA) error {
	return writeRawRGBA(s.stdin, img)
}

func (s *FFmpegStream) Close() (Artifact, error) {
	s.stdin.Close()
	err := s.cmd.Wait()
	if cerr := s.out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("ffmpeg wait error: %w, output: %s", err, tail(s.stderr.Bytes(), 2048))
	}
	return Artifact{Path: s.Output, ContentType: "video/mp4", Ext: "mp4"}, nil
}

func (s *FFmpegStream) Kill() {
	if s.cmd == nil {
		return
	}
	s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.out.Close()
	_ = os.Remove(s.Output)
}
