// Package analyzer finds the part of a photo most worth keeping in frame.
// The result feeds the face-aware crop when no face region was stored.
package analyzer

import "image"

// Block represents a detected region of interest, in image pixels.
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // 0.0-1.0
}

// Detector is the interface for image analysis strategies
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}
