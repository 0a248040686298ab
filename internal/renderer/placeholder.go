package renderer

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/skip2/go-qrcode"

	"github.com/ivlev/daybyday/internal/timeline"
)

var placeholderFrame = color.RGBA{R: 0xff, G: 0x00, B: 0xcc, A: 0xff}

// drawPlaceholder marks a slide whose photo could not be loaded: a magenta
// panel holding a QR code of the day, centered on the background. The QR
// code makes the slide easy to trace back from a finished video.
func drawPlaceholder(dst *image.RGBA, day timeline.DayKey) {
	b := dst.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	side /= 3
	border := side / 12
	if border < 4 {
		border = 4
	}

	panel := image.Rect(0, 0, side+2*border, side+2*border).
		Add(image.Pt((b.Dx()-side)/2-border, (b.Dy()-side)/2-border))
	draw.Draw(dst, panel, &image.Uniform{placeholderFrame}, image.Point{}, draw.Src)

	inner := panel.Inset(border)
	q, err := qrcode.New("daybyday:missing:"+string(day), qrcode.Medium)
	if err != nil {
		// Без QR остается только рамка и белое поле.
		draw.Draw(dst, inner, image.White, image.Point{}, draw.Src)
		return
	}
	code := q.Image(inner.Dx())
	draw.Draw(dst, inner, code, code.Bounds().Min, draw.Src)
}
