package timeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of a timeline.
type File struct {
	Version string  `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// WriteFile writes entries to a YAML file.
func WriteFile(path string, entries []Entry) error {
	data, err := yaml.Marshal(&File{Version: "1.0", Entries: entries})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads and validates a YAML timeline.
func ReadFile(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return New(f.Entries)
}

var scanExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
	".pdf": true,
}

// ScanDir builds entries from files whose names start with a YYYY-MM-DD date,
// e.g. "2024-01-31.jpg" or "2024-01-31_beach.png". When several files share a
// day, the first in name order wins and the rest are returned as ignored.
func ScanDir(dir string) (entries []Entry, ignored []string, err error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if scanExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[DayKey]bool)
	for _, name := range names {
		if len(name) < len(DayLayout) {
			ignored = append(ignored, name)
			continue
		}
		day := DayKey(name[:len(DayLayout)])
		if _, err := day.Time(); err != nil || seen[day] {
			ignored = append(ignored, name)
			continue
		}
		seen[day] = true
		entries = append(entries, Entry{Day: day, Image: filepath.Join(dir, name)})
	}

	// Имена отсортированы, значит и даты идут по возрастанию.
	return entries, ignored, nil
}
