package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Date label geometry, in frame pixels.
const (
	labelMarginLeft       = 20
	labelMarginBottom     = 80
	labelWidth            = 240
	labelHeight           = 60
	labelTextX            = 40 // from the frame's left edge
	labelCenterFromBottom = 50
	labelFontSize         = 32
)

var (
	labelBox  = color.RGBA{A: 0xff}
	labelText = image.White
)

// labelRenderer draws date labels. font.Face is not safe for concurrent use,
// so every draw goes through mu.
type labelRenderer struct {
	mu        sync.Mutex
	face      font.Face
	capHeight int
}

func newLabelRenderer() (*labelRenderer, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    labelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}

	m := face.Metrics()
	capHeight := m.CapHeight.Ceil()
	if capHeight <= 0 {
		capHeight = m.Ascent.Ceil()
	}
	return &labelRenderer{face: face, capHeight: capHeight}, nil
}

// render returns the label image and where its top-left corner goes in a
// frame of height frameH. The box is at least labelWidth wide and grows when
// the text would not fit.
func (l *labelRenderer) render(text string, frameH int) (*image.RGBA, image.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	textX := labelTextX - labelMarginLeft
	advance := font.MeasureString(l.face, text).Ceil()
	w := labelWidth
	if need := textX*2 + advance; need > w {
		w = need
	}

	img := image.NewRGBA(image.Rect(0, 0, w, labelHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{labelBox}, image.Point{}, draw.Src)

	// Центр строки на высоте frameH-50, то есть на 30 px ниже верха плашки.
	center := labelMarginBottom - labelCenterFromBottom
	d := &font.Drawer{
		Dst:  img,
		Src:  labelText,
		Face: l.face,
		Dot:  fixed.P(textX, center+l.capHeight/2),
	}
	d.DrawString(text)

	return img, image.Pt(labelMarginLeft, frameH-labelMarginBottom)
}
