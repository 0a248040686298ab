package video

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

// ManifestEntry is one still shown for Frames frame periods.
type ManifestEntry struct {
	Path   string
	Frames int
}

// Manifest is an ffmpeg concat demuxer script.
type Manifest struct {
	FPS     int
	Entries []ManifestEntry
}

func (m *Manifest) Add(path string) {
	m.Entries = append(m.Entries, ManifestEntry{Path: path, Frames: 1})
}

// Extend shows the last still for one more frame.
func (m *Manifest) Extend() {
	m.Entries[len(m.Entries)-1].Frames++
}

func (m *Manifest) Frames() int {
	n := 0
	for _, e := range m.Entries {
		n += e.Frames
	}
	return n
}

func (m *Manifest) Validate() error {
	if len(m.Entries) == 0 {
		return errors.Configurationf("manifest has no frames")
	}
	for i, e := range m.Entries {
		if e.Frames <= 0 {
			return errors.Configurationf("manifest entry %d has no duration", i)
		}
	}
	return nil
}

// WriteTo writes `file`/`duration` pairs. The last file is listed a second
// time without a duration, otherwise the concat demuxer drops its duration.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	fmt.Fprintln(cw, "ffconcat version 1.0")
	for _, e := range m.Entries {
		fmt.Fprintf(cw, "file %s\n", quote(e.Path))
		fmt.Fprintf(cw, "duration %.6f\n", float64(e.Frames)/float64(m.FPS))
	}
	if n := len(m.Entries); n > 0 {
		fmt.Fprintf(cw, "file %s\n", quote(m.Entries[n-1].Path))
	}
	if cw.err == nil {
		cw.err = cw.w.(*bufio.Writer).Flush()
	}
	return cw.n, cw.err
}

func quote(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
