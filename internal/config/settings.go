package config

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

// FPS is the fixed output frame rate.
const FPS = 30

type AspectRatio string

const (
	Aspect16x9 AspectRatio = "16:9"
	Aspect1x1  AspectRatio = "1:1"
	Aspect9x16 AspectRatio = "9:16"
)

var aspectDimensions = map[AspectRatio][2]int{
	Aspect16x9: {1920, 1080},
	Aspect1x1:  {1080, 1080},
	Aspect9x16: {1080, 1920},
}

// Dimensions returns the pixel size for the ratio.
func (a AspectRatio) Dimensions() (width, height int, ok bool) {
	d, ok := aspectDimensions[a]
	return d[0], d[1], ok
}

type Transition string

const (
	TransitionNone      Transition = "none"
	TransitionCrossfade Transition = "crossfade"
)

// RGB is a background color. It reads and writes as "#rrggbb".
type RGB struct {
	R, G, B uint8
}

func ParseRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("color %q is not #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("color %q is not #rrggbb", s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *RGB) UnmarshalText(b []byte) error {
	v, err := ParseRGB(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// RenderSettings configure one render. They are never changed while it runs.
type RenderSettings struct {
	AspectRatio       AspectRatio `yaml:"aspect_ratio" json:"aspect_ratio"`
	DurationPerSlide  float64     `yaml:"duration_per_slide" json:"duration_per_slide"`
	Transition        Transition  `yaml:"transition" json:"transition"`
	TransitionSeconds float64     `yaml:"transition_seconds" json:"transition_seconds"`
	ShowDateOverlay   bool        `yaml:"show_date_overlay" json:"show_date_overlay"`
	FaceAwareCrop     bool        `yaml:"face_aware_crop" json:"face_aware_crop"`
	BackgroundColor   RGB         `yaml:"background_color" json:"background_color"`
}

// DefaultRenderSettings mirrors what the journal app offers out of the box.
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		AspectRatio:       Aspect16x9,
		DurationPerSlide:  2.0,
		Transition:        TransitionNone,
		TransitionSeconds: 0.5,
		ShowDateOverlay:   true,
		FaceAwareCrop:     false,
		BackgroundColor:   RGB{},
	}
}

// Validate reports the first problem as a validation error.
func (s RenderSettings) Validate() error {
	if _, _, ok := s.AspectRatio.Dimensions(); !ok {
		return errors.ValidationField("settings.aspect_ratio", fmt.Sprintf("unsupported aspect ratio %q", s.AspectRatio))
	}
	if !(s.DurationPerSlide > 0) || math.IsInf(s.DurationPerSlide, 0) {
		return errors.ValidationField("settings.duration_per_slide", "duration per slide must be positive")
	}
	if s.FramesPerSlide() < 1 {
		return errors.ValidationField("settings.duration_per_slide", fmt.Sprintf("duration per slide is shorter than one frame at %d fps", FPS))
	}
	switch s.Transition {
	case TransitionNone, TransitionCrossfade:
	default:
		return errors.ValidationField("settings.transition", fmt.Sprintf("unsupported transition %q", s.Transition))
	}
	if s.TransitionSeconds < 0 || math.IsNaN(s.TransitionSeconds) {
		return errors.ValidationField("settings.transition_seconds", "transition length cannot be negative")
	}
	return nil
}

// Size is the frame size for the aspect ratio, zero when unsupported.
func (s RenderSettings) Size() (int, int) {
	w, h, _ := s.AspectRatio.Dimensions()
	return w, h
}

func (s RenderSettings) FramesPerSlide() int {
	return int(math.Round(s.DurationPerSlide * FPS))
}

// TransitionFrames is the crossfade window length. It leaves at least one
// full-opacity frame at the start of every slide.
func (s RenderSettings) TransitionFrames() int {
	if s.Transition != TransitionCrossfade {
		return 0
	}
	t := int(math.Round(s.TransitionSeconds * FPS))
	if max := s.FramesPerSlide() - 1; t > max {
		t = max
	}
	if t < 0 {
		t = 0
	}
	return t
}

// TotalFrames for a timeline of n slides.
func (s RenderSettings) TotalFrames(n int) int {
	return n * s.FramesPerSlide()
}
