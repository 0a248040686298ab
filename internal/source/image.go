// Package source loads the photo behind a timeline entry.
package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

// MaxImageBytes caps how much is read for a single reference.
const MaxImageBytes = 64 << 20

// DefaultMaxPixels caps the decoded size of one image. A small file can
// declare huge dimensions, so the header is checked before decoding.
const DefaultMaxPixels = 100_000_000

// FileSource reads references of three kinds: paths (relative to Root),
// file:// URIs and http(s) URLs. Document formats are rasterized, first
// page only.
type FileSource struct {
	// Root confines local paths when set.
	Root string
	// Client fetches http(s) references.
	Client *http.Client
	// DPI for document pages.
	DPI float64
	// MaxPixels bounds width*height of a decoded image or rasterized page.
	MaxPixels int
}

func NewFileSource(root string, timeout time.Duration, dpi float64) *FileSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &FileSource{
		Root:      root,
		Client:    &http.Client{Timeout: timeout},
		DPI:       dpi,
		MaxPixels: DefaultMaxPixels,
	}
}

func (s *FileSource) Decode(ctx context.Context, ref string) (*Decoded, error) {
	data, name, err := s.read(ctx, ref)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDecode, "source.read", "image could not be read").
			WithField("ref", ref)
	}

	img, err := decodeBytes(data, name, s.DPI, s.maxPixels())
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDecode, "source.decode", "image could not be decoded").
			WithField("ref", ref)
	}
	return &Decoded{Image: img}, nil
}

func (s *FileSource) maxPixels() int {
	if s.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return s.MaxPixels
}

func (s *FileSource) read(ctx context.Context, ref string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(ref) == "" {
		return nil, "", fmt.Errorf("image reference is empty")
	}

	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return s.fetch(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, "", err
		}
		return s.readFile(u.Path)
	default:
		return s.readFile(ref)
	}
}

func (s *FileSource) fetch(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: status %d", ref, resp.StatusCode)
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}

	u, _ := url.Parse(ref)
	name := ""
	if u != nil {
		name = u.Path
	}
	return data, name, nil
}

func (s *FileSource) readFile(ref string) ([]byte, string, error) {
	p, err := s.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := readLimited(f)
	return data, p, err
}

// resolve maps ref to a path, refusing anything that escapes Root.
func (s *FileSource) resolve(ref string) (string, error) {
	if s.Root == "" {
		return ref, nil
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the source root", ref)
	}
	return p, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image is larger than %d bytes", MaxImageBytes)
	}
	return data, nil
}

func decodeBytes(data []byte, name string, dpi float64, maxPixels int) (image.Image, error) {
	if isDocument(name, data) {
		return renderDocument(data, dpi, maxPixels)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func checkPixels(w, h, maxPixels int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image has no pixels (%dx%d)", w, h)
	}
	if int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("image is %dx%d, more than %d pixels", w, h, maxPixels)
	}
	return nil
}
