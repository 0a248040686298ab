package timeline

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

func entries(days ...string) []Entry {
	out := make([]Entry, len(days))
	for i, d := range days {
		out[i] = Entry{Day: DayKey(d), Image: d + ".jpg"}
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		field   string
	}{
		{"valid", entries("2024-01-01", "2024-01-02", "2024-03-01"), ""},
		{"empty", nil, "entries"},
		{"duplicate", entries("2024-01-01", "2024-01-01"), "entries[1].day"},
		{"out of order", entries("2024-01-02", "2024-01-01"), "entries[1].day"},
		{"malformed day", entries("2024-1-1"), "entries[0].day"},
		{"impossible date", entries("2024-02-30"), "entries[0].day"},
		{"empty image is left to the loader", []Entry{{Day: "2024-01-01"}}, ""},
		{"region past the edge is left to the loader", []Entry{{Day: "2024-01-01", Image: "a.jpg", FaceRegion: &Region{X: 0.5, Y: 0.5, Width: 0.6, Height: 0.2}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.entries)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.IsValidation(err) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if got := errors.GetFields(err)["field"]; got != tt.field {
				t.Errorf("Expected field %s, got %v", tt.field, got)
			}
		})
	}
}

func TestTimelineAccessors(t *testing.T) {
	tl, err := New(entries("2024-01-01", "2024-01-02", "2024-01-03"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if tl.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", tl.Len())
	}
	if tl.EntryAt(1).Day != "2024-01-02" {
		t.Errorf("Expected 2024-01-02, got %s", tl.EntryAt(1).Day)
	}

	next, ok := tl.NeighborAfter(0)
	if !ok || next.Day != "2024-01-02" {
		t.Errorf("Expected neighbor 2024-01-02, got %v %v", next.Day, ok)
	}
	if _, ok := tl.NeighborAfter(2); ok {
		t.Error("Expected no neighbor after the last entry")
	}
	if _, ok := tl.NeighborAfter(-1); ok {
		t.Error("Expected no neighbor for a negative index")
	}
}

func TestNewCopiesInput(t *testing.T) {
	in := entries("2024-01-01", "2024-01-02")
	tl, err := New(in)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	in[0].Image = "changed.jpg"
	if tl.EntryAt(0).Image != "2024-01-01.jpg" {
		t.Errorf("Expected timeline to be unaffected by caller mutation, got %s", tl.EntryAt(0).Image)
	}
}

func TestDayLabel(t *testing.T) {
	tests := map[DayKey]string{
		"2024-01-02": "Jan 2, 2024",
		"2023-12-31": "Dec 31, 2023",
		"garbage":    "garbage",
	}
	for day, want := range tests {
		if got := day.Label(); got != want {
			t.Errorf("Label(%s): expected %q, got %q", day, want, got)
		}
	}
}

func TestRegionClamped(t *testing.T) {
	tests := []struct {
		name string
		in   Region
		want Region
		ok   bool
	}{
		{"inside", Region{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}, Region{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}, true},
		{"past right edge", Region{X: 0.5, Y: 0.5, Width: 0.6, Height: 0.2}, Region{X: 0.5, Y: 0.5, Width: 0.5, Height: 0.2}, true},
		{"negative origin", Region{X: -0.25, Y: -0.5, Width: 0.5, Height: 1}, Region{X: 0, Y: 0, Width: 0.25, Height: 0.5}, true},
		{"zero size", Region{X: 0.1, Y: 0.1}, Region{}, false},
		{"fully outside", Region{X: 1.2, Y: 0, Width: 0.5, Height: 0.5}, Region{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Clamped()
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			const eps = 1e-9
			if math.Abs(got.X-tt.want.X) > eps || math.Abs(got.Y-tt.want.Y) > eps ||
				math.Abs(got.Width-tt.want.Width) > eps || math.Abs(got.Height-tt.want.Height) > eps {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestRegionFromPixels(t *testing.T) {
	r := RegionFromPixels(100, 50, 200, 100, 1000, 500)
	if r.X != 0.1 || r.Y != 0.1 || r.Width != 0.2 || r.Height != 0.2 {
		t.Errorf("Unexpected region %+v", r)
	}
	if c := r.CenterY(); c < 0.1999 || c > 0.2001 {
		t.Errorf("Expected center 0.2, got %f", c)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	in := entries("2024-05-01", "2024-05-02")
	in[1].FaceRegion = &Region{X: 0.2, Y: 0.1, Width: 0.3, Height: 0.3}

	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	tl, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if tl.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", tl.Len())
	}
	if tl.EntryAt(1).FaceRegion == nil || tl.EntryAt(1).FaceRegion.Width != 0.3 {
		t.Errorf("Expected face region to survive, got %+v", tl.EntryAt(1).FaceRegion)
	}
}

func TestReadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "version: \"1.0\"\nentries:\n  - day: 2024-01-02\n    image: b.jpg\n  - day: 2024-01-01\n    image: a.jpg\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); !errors.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"2024-01-03.png",
		"2024-01-01.jpg",
		"2024-01-01_second.jpg",
		"notes.txt",
		"holiday.jpg",
		"2024-01-02_beach.JPEG",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, ignored, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}

	wantDays := []DayKey{"2024-01-01", "2024-01-02", "2024-01-03"}
	if len(got) != len(wantDays) {
		t.Fatalf("Expected %d entries, got %d: %+v", len(wantDays), len(got), got)
	}
	for i, d := range wantDays {
		if got[i].Day != d {
			t.Errorf("Entry %d: expected %s, got %s", i, d, got[i].Day)
		}
	}
	if filepath.Base(got[0].Image) != "2024-01-01.jpg" {
		t.Errorf("Expected first file of the day to win, got %s", got[0].Image)
	}
	if len(ignored) != 2 {
		t.Errorf("Expected 2 ignored files, got %v", ignored)
	}
	if err := Validate(got); err != nil {
		t.Errorf("Expected scanned entries to validate, got %v", err)
	}
}
