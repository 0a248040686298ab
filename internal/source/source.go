package source

import (
	"context"
	"image"

	"github.com/ivlev/daybyday/internal/analyzer"
	"github.com/ivlev/daybyday/internal/timeline"
)

// Decoded is a loaded photo, optionally with a region computed earlier.
type Decoded struct {
	Image  image.Image
	Region *timeline.Region
}

// Source resolves an image reference to pixels.
// Implementations must be safe for concurrent use.
type Source interface {
	Decode(ctx context.Context, ref string) (*Decoded, error)
}

// AnalyzingSource fills in a saliency region when the wrapped source did not
// provide one.
type AnalyzingSource struct {
	Source   Source
	Detector analyzer.Detector
}

func (s *AnalyzingSource) Decode(ctx context.Context, ref string) (*Decoded, error) {
	d, err := s.Source.Decode(ctx, ref)
	if err != nil || d.Region != nil || s.Detector == nil {
		return d, err
	}
	// Ошибка анализа не мешает рендеру: просто нет подсказки.
	if region, err := analyzer.SalientRegion(s.Detector, d.Image); err == nil {
		d.Region = region
	}
	return d, nil
}
