package renderer

import (
	"math"

	"github.com/ivlev/daybyday/internal/timeline"
)

// AnchorPolicy decides where a cover-scaled photo is cropped vertically.
//
// TopBias is the share of the excess height cut from the top when no hint is
// known (0.5 would be centered, 0 keeps the top edge). PreferHint centers the
// crop window on a face or saliency region when one is available.
type AnchorPolicy struct {
	TopBias    float64
	PreferHint bool
}

// DefaultAnchorPolicy keeps faces, which tend to sit in the upper third of portraits, in frame.
func DefaultAnchorPolicy() AnchorPolicy {
	return AnchorPolicy{TopBias: 0.3, PreferHint: true}
}

// VerticalOffset returns the y position of the scaled image inside the frame.
// The result is always within [-(scaledH-targetH), 0], so the photo covers
// the frame top to bottom.
func (p AnchorPolicy) VerticalOffset(faceAware bool, scaledH, targetH int, hint *timeline.Region) int {
	excess := scaledH - targetH
	if excess <= 0 {
		return 0
	}

	var off float64
	switch {
	case !faceAware:
		off = -float64(excess) / 2
	case hint != nil && p.PreferHint:
		off = float64(targetH)/2 - hint.CenterY()*float64(scaledH)
	default:
		off = -float64(excess) * p.TopBias
	}
	return clampOffset(int(math.Round(off)), excess)
}

// HorizontalOffset always centers.
func HorizontalOffset(scaledW, targetW int) int {
	excess := scaledW - targetW
	if excess <= 0 {
		return 0
	}
	return -excess / 2
}

func clampOffset(off, excess int) int {
	if off > 0 {
		return 0
	}
	if off < -excess {
		return -excess
	}
	return off
}
