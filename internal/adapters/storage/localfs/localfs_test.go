package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/daybyday/internal/ports"
)

func TestPutAndGetObject(t *testing.T) {
	root := t.TempDir()
	fs := New(root)

	out, err := fs.PutObject(context.Background(), ports.PutObjectInput{
		ObjectKey:   "renders/job-1.mp4",
		ContentType: "video/mp4",
		Reader:      strings.NewReader("frames"),
	})
	if err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if out.ObjectKey != "renders/job-1.mp4" || out.Size != 6 {
		t.Errorf("Unexpected output %+v", out)
	}
	if _, err := os.Stat(filepath.Join(root, "renders", "job-1.mp4")); err != nil {
		t.Errorf("Expected file on disk: %v", err)
	}

	rc, ct, size, err := fs.GetObject(context.Background(), out.ObjectKey)
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "frames" || size != 6 {
		t.Errorf("Expected frames/6, got %q/%d", data, size)
	}
	if ct != "video/mp4" {
		t.Errorf("Expected video/mp4, got %s", ct)
	}

	left, _ := filepath.Glob(filepath.Join(root, "renders", ".upload-*"))
	if len(left) != 0 {
		t.Errorf("Expected no temp uploads left, got %v", left)
	}
}

func TestInvalidKeys(t *testing.T) {
	fs := New(t.TempDir())
	for _, key := range []string{"", "/", "../escape.mp4", "a/../../b"} {
		if _, err := fs.PutObject(context.Background(), ports.PutObjectInput{ObjectKey: key, Reader: strings.NewReader("x")}); err == nil {
			t.Errorf("Expected key %q to be rejected", key)
		}
	}
	if _, _, _, err := fs.GetObject(context.Background(), "missing.mp4"); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
