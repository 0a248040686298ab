// Package renderer builds output frames: cover-scaled photos on a background,
// crossfades between neighbouring days and the date label.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/timeline"
)

// Plate is one slide prepared for compositing: the background with the photo
// cover-scaled and anchored on it, exactly frame-sized. Plates are built once
// per slide and read concurrently afterwards; they are never modified.
type Plate struct {
	Day         timeline.DayKey
	Image       *image.RGBA
	Placeholder bool

	label   *image.RGBA
	labelAt image.Point
}

// Options tune a Compositor beyond the per-render settings.
type Options struct {
	Policy AnchorPolicy
	// Scaler defaults to ApproxBiLinear.
	Scaler xdraw.Scaler
}

// Compositor turns decoded photos into plates and plates into frames.
// It is safe for concurrent use.
type Compositor struct {
	settings config.RenderSettings
	width    int
	height   int
	bg       color.RGBA
	policy   AnchorPolicy
	scaler   xdraw.Scaler
	labels   *labelRenderer
}

func New(settings config.RenderSettings, opts Options) (*Compositor, error) {
	w, h, ok := settings.AspectRatio.Dimensions()
	if !ok {
		return nil, fmt.Errorf("unsupported aspect ratio %q", settings.AspectRatio)
	}
	c := &Compositor{
		settings: settings,
		width:    w,
		height:   h,
		bg:       settings.BackgroundColor.RGBA(),
		policy:   opts.Policy,
		scaler:   opts.Scaler,
	}
	if c.scaler == nil {
		c.scaler = xdraw.ApproxBiLinear
	}
	if settings.ShowDateOverlay {
		l, err := newLabelRenderer()
		if err != nil {
			return nil, fmt.Errorf("load label font: %w", err)
		}
		c.labels = l
	}
	return c, nil
}

// ScalerByName maps the render.scaler config value to an x/image scaler.
func ScalerByName(name string) xdraw.Scaler {
	switch name {
	case "nearest":
		return xdraw.NearestNeighbor
	case "catmullrom":
		return xdraw.CatmullRom
	default:
		return xdraw.ApproxBiLinear
	}
}

// Bounds is the frame rectangle.
func (c *Compositor) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// CoverSize scales (iw, ih) by max(tw/iw, th/ih). The result always covers
// the target: sw >= tw and sh >= th.
func CoverSize(iw, ih, tw, th int) (sw, sh int) {
	scale := math.Max(float64(tw)/float64(iw), float64(th)/float64(ih))
	sw = int(math.Ceil(float64(iw)*scale - 1e-6))
	sh = int(math.Ceil(float64(ih)*scale - 1e-6))
	if sw < tw {
		sw = tw
	}
	if sh < th {
		sh = th
	}
	return sw, sh
}

// Prepare builds the plate for a day. A nil img (the photo could not be
// decoded) yields a placeholder plate instead of skipping the slide.
// hint is the face or saliency region normalized to img, may be nil.
func (c *Compositor) Prepare(img image.Image, day timeline.DayKey, hint *timeline.Region) *Plate {
	dst := image.NewRGBA(c.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{c.bg}, image.Point{}, draw.Src)

	p := &Plate{Day: day, Image: dst}

	if img == nil || img.Bounds().Empty() {
		drawPlaceholder(dst, day)
		p.Placeholder = true
	} else {
		sb := img.Bounds()
		sw, sh := CoverSize(sb.Dx(), sb.Dy(), c.width, c.height)
		x := HorizontalOffset(sw, c.width)
		y := c.policy.VerticalOffset(c.settings.FaceAwareCrop, sh, c.height, hint)
		c.scaler.Scale(dst, image.Rect(x, y, x+sw, y+sh), img, sb, xdraw.Over, nil)
	}

	if c.labels != nil {
		p.label, p.labelAt = c.labels.render(day.Label(), c.height)
	}
	return p
}

// Composite writes one frame into dst, which must have the compositor's bounds.
// With a secondary plate and blend in (0, 1) the secondary is faded in over
// the primary. The date label of the primary is drawn last, never blended.
func (c *Compositor) Composite(dst *image.RGBA, primary, secondary *Plate, blend float64) {
	if secondary == nil || blend <= 0 {
		copy(dst.Pix, primary.Image.Pix)
	} else {
		blendPix(dst.Pix, primary.Image.Pix, secondary.Image.Pix, blend)
	}

	if primary.label != nil {
		r := primary.label.Bounds().Add(primary.labelAt)
		draw.Draw(dst, r, primary.label, image.Point{}, draw.Over)
	}
}
