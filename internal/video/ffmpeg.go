package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/daybyday/internal/system"
)

// CommandRunner runs an external program to completion and returns its
// combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// EncoderOptions select the H.264 encoder and its quality.
type EncoderOptions struct {
	FFmpeg  string
	Encoder string
	Quality int
}

func (o EncoderOptions) binary() string {
	if o.FFmpeg == "" {
		return "ffmpeg"
	}
	return o.FFmpeg
}

func (o EncoderOptions) outputArgs(p Profile) ffmpeg.KwArgs {
	enc := o.Encoder
	if enc == "" {
		enc = system.DefaultH264Encoder
	}
	kw := ffmpeg.KwArgs{
		"c:v":     enc,
		"pix_fmt": p.PixFmt,
		"r":       p.FPS,
		"s":       fmt.Sprintf("%dx%d", p.Width, p.Height),
	}
	for k, v := range system.QualityArgs(enc, o.Quality) {
		kw[k] = v
	}
	return kw
}

// ConcatArgs compiles the batch command: concat demuxer in, H.264 mp4 out.
func ConcatArgs(manifest, output string, p Profile, o EncoderOptions) []string {
	out := o.outputArgs(p)
	out["movflags"] = "+faststart"
	return ffmpeg.Input(manifest, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(output, out).
		OverWriteOutput().
		GetArgs()
}

// StreamArgs compiles the streaming command: raw RGBA on stdin, fragmented
// mp4 on stdout.
func StreamArgs(p Profile, o EncoderOptions) []string {
	out := o.outputArgs(p)
	out["f"] = "mp4"
	out["movflags"] = "frag_keyframe+empty_moov"
	return ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", p.Width, p.Height),
		"r":       p.FPS,
	}).
		Output("pipe:1", out).
		GetArgs()
}

// writeRawRGBA пишет кадр как есть, конвертируя только нестандартные буферы.
func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

// tail keeps the end of ffmpeg output for error fields.
func tail(out []byte, n int) string {
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return string(out)
}
