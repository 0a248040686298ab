package source

import (
	"bytes"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

var documentExtensions = map[string]bool{
	".pdf":  true,
	".xps":  true,
	".epub": true,
	".cbz":  true,
}

func isDocument(name string, data []byte) bool {
	if documentExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// renderDocument rasterizes the first page, e.g. a scanned journal page.
func renderDocument(data []byte, dpi float64, maxPixels int) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	bound, err := doc.Bound(0)
	if err != nil {
		return nil, err
	}
	w, h := pageSize(bound, dpi)
	if err := checkPixels(w, h, maxPixels); err != nil {
		return nil, err
	}
	return doc.ImageDPI(0, dpi)
}

// pageSize converts a page bound in points (1/72 inch) to pixels at dpi.
func pageSize(bound image.Rectangle, dpi float64) (int, int) {
	scale := dpi / 72
	return int(math.Ceil(float64(bound.Dx()) * scale)), int(math.Ceil(float64(bound.Dy()) * scale))
}
