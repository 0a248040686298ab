package analyzer

import (
	"fmt"
	"image"

	"github.com/ivlev/daybyday/internal/timeline"
)

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// SalientRegion runs det and returns the strongest block as a region
// normalized to img. Blocks covering almost the whole photo say nothing about
// where the subject is, so they are skipped.
func SalientRegion(det Detector, img image.Image) (*timeline.Region, error) {
	blocks, err := det.Detect(img)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	total := float64(b.Dx() * b.Dy())
	var best *Block
	bestScore := 0.0
	for i := range blocks {
		blk := &blocks[i]
		area := float64(blk.Rect.Dx() * blk.Rect.Dy())
		if area == 0 || area > 0.9*total {
			continue
		}
		score := area * blk.Confidence
		if score > bestScore {
			best, bestScore = blk, score
		}
	}
	if best == nil {
		return nil, nil
	}

	r := best.Rect.Sub(b.Min)
	region := timeline.RegionFromPixels(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), b.Dx(), b.Dy())
	return &region, nil
}
