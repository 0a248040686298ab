// Package timeline holds the ordered, validated list of days to render.
package timeline

import (
	"fmt"
	"time"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

// DayLayout is the format of a day key.
const DayLayout = "2006-01-02"

// LabelLayout is how a day is printed on the date overlay.
const LabelLayout = "Jan 2, 2006"

// DayKey is a calendar date written as YYYY-MM-DD. String order equals date order.
type DayKey string

// Time parses the key as a UTC date.
func (d DayKey) Time() (time.Time, error) {
	return time.Parse(DayLayout, string(d))
}

// Label formats the day for the overlay, e.g. "Jan 2, 2024".
// A malformed key is returned unchanged.
func (d DayKey) Label() string {
	t, err := d.Time()
	if err != nil {
		return string(d)
	}
	return t.Format(LabelLayout)
}

// Region is a rectangle normalized to the original image, all values in 0..1.
type Region struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// CenterY is the vertical center of the region, normalized.
func (r Region) CenterY() float64 {
	return r.Y + r.Height/2
}

// Clamped trims the region to the image. It reports false when nothing of
// positive size is left.
func (r Region) Clamped() (Region, bool) {
	x0, y0 := clamp01(r.X), clamp01(r.Y)
	x1, y1 := clamp01(r.X+r.Width), clamp01(r.Y+r.Height)
	if x1 <= x0 || y1 <= y0 {
		return Region{}, false
	}
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RegionFromPixels normalizes a pixel rectangle against the image size.
func RegionFromPixels(x, y, w, h, imgW, imgH int) Region {
	if imgW <= 0 || imgH <= 0 {
		return Region{}
	}
	return Region{
		X:      float64(x) / float64(imgW),
		Y:      float64(y) / float64(imgH),
		Width:  float64(w) / float64(imgW),
		Height: float64(h) / float64(imgH),
	}
}

// Entry is one day of the journal.
type Entry struct {
	Day        DayKey  `yaml:"day" json:"day"`
	Image      string  `yaml:"image" json:"image"`
	FaceRegion *Region `yaml:"face_region,omitempty" json:"face_region,omitempty"`
}

// Timeline is a validated, ascending sequence of entries. It is immutable.
type Timeline struct {
	entries []Entry
}

// New validates entries and wraps them. The slice is copied.
func New(entries []Entry) (*Timeline, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Timeline{entries: cp}, nil
}

// Validate checks the entries without building a Timeline.
// Entries are never re-sorted: order problems are reported, not fixed.
// Image references and face regions are per-entry concerns, resolved when
// the entry is loaded.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return errors.ValidationField("entries", "timeline is empty")
	}

	var prev DayKey
	for i, e := range entries {
		field := fmt.Sprintf("entries[%d]", i)
		if _, err := e.Day.Time(); err != nil {
			return errors.ValidationField(field+".day", fmt.Sprintf("day %q is not a YYYY-MM-DD date", e.Day))
		}
		if i > 0 && e.Day <= prev {
			if e.Day == prev {
				return errors.ValidationField(field+".day", fmt.Sprintf("duplicate day %s", e.Day))
			}
			return errors.ValidationField(field+".day", fmt.Sprintf("day %s is out of order after %s", e.Day, prev))
		}
		prev = e.Day
	}
	return nil
}

func (t *Timeline) Len() int {
	return len(t.entries)
}

// EntryAt returns the entry at index i. It panics when i is out of range.
func (t *Timeline) EntryAt(i int) Entry {
	return t.entries[i]
}

// NeighborAfter returns the entry following i, false for the last one.
func (t *Timeline) NeighborAfter(i int) (Entry, bool) {
	if i < 0 || i+1 >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[i+1], true
}

// Entries returns a copy of the entries.
func (t *Timeline) Entries() []Entry {
	cp := make([]Entry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// Days lists the day keys in order.
func (t *Timeline) Days() []DayKey {
	days := make([]DayKey, len(t.entries))
	for i, e := range t.entries {
		days[i] = e.Day
	}
	return days
}
