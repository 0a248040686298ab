package analyzer

import (
	"image"
	"image/color"
	"testing"
)

func blockImage(w, h int, rect image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestContrastDetector(t *testing.T) {
	// White rectangle on black background
	img := blockImage(200, 200, image.Rect(50, 50, 150, 150))

	detector := NewContrastDetector()
	blocks, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatal("Expected at least one block, got none")
	}

	block := blocks[0]
	if block.Rect.Dx() < 80 || block.Rect.Dy() < 80 {
		t.Errorf("Block too small: %v", block.Rect)
	}
	if block.Confidence <= 0 || block.Confidence > 1 {
		t.Errorf("Expected confidence in (0, 1], got %f", block.Confidence)
	}
}

func TestContrastDetectorDownscales(t *testing.T) {
	// Большое изображение анализируется в уменьшенной копии,
	// координаты блока возвращаются в исходном масштабе.
	img := blockImage(2000, 1000, image.Rect(1200, 300, 1600, 700))

	blocks, err := NewContrastDetector().Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatal("Expected a block")
	}
	r := blocks[0].Rect
	if r.Min.X < 1100 || r.Max.X > 1700 || r.Min.Y < 200 || r.Max.Y > 800 {
		t.Errorf("Expected block near (1200,300)-(1600,700), got %v", r)
	}
}

func TestSalientRegion(t *testing.T) {
	img := blockImage(400, 800, image.Rect(100, 100, 300, 300))

	region, err := SalientRegion(NewContrastDetector(), img)
	if err != nil {
		t.Fatalf("SalientRegion failed: %v", err)
	}
	if region == nil {
		t.Fatal("Expected a region")
	}
	c := region.CenterY()
	if c < 0.2 || c > 0.3 {
		t.Errorf("Expected region center near 0.25, got %f (%+v)", c, region)
	}
}

func TestSalientRegionFlatImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 80))
	region, err := SalientRegion(NewContrastDetector(), img)
	if err != nil {
		t.Fatalf("SalientRegion failed: %v", err)
	}
	if region != nil {
		t.Errorf("Expected no region on a flat image, got %+v", region)
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false}, // default
		{"ocr", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if detector == nil {
					t.Error("Expected detector, got nil")
				}
			}
		})
	}
}
