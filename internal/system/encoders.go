package system

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Software fallback when no hardware encoder is compiled into ffmpeg.
const DefaultH264Encoder = "libx264"

// Порядок важен: сначала аппаратные кодеки.
var hardwareEncoders = []string{
	"h264_videotoolbox",
	"h264_nvenc",
}

var (
	probeMu    sync.Mutex
	probeCache = map[string]string{}
)

// ListEncoders runs `ffmpeg -encoders`. It is a variable so tests can
// replace it.
var ListEncoders = func(ctx context.Context, ffmpegPath string) (string, error) {
	out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	return string(out), err
}

// BestH264Encoder probes ffmpeg once per binary and returns the first
// available hardware encoder, or libx264.
func BestH264Encoder(ctx context.Context, ffmpegPath string) string {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	probeMu.Lock()
	defer probeMu.Unlock()
	if enc, ok := probeCache[ffmpegPath]; ok {
		return enc
	}

	enc := DefaultH264Encoder
	if out, err := ListEncoders(ctx, ffmpegPath); err == nil {
		for _, name := range hardwareEncoders {
			if strings.Contains(out, name) {
				enc = name
				break
			}
		}
	}
	probeCache[ffmpegPath] = enc
	return enc
}

// QualityArgs maps a 0..51 quality knob onto encoder specific flags.
func QualityArgs(encoder string, quality int) map[string]any {
	switch encoder {
	case "h264_videotoolbox":
		return map[string]any{"b:v": strconv.Itoa(quality*100) + "k"}
	case "h264_nvenc":
		return map[string]any{"cq": quality}
	default:
		return map[string]any{"crf": quality, "preset": "medium"}
	}
}
