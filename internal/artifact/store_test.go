package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/daybyday/internal/adapters/storage/localfs"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/ports"
	"github.com/ivlev/daybyday/internal/video"
)

func TestPersistFromPathAndOpen(t *testing.T) {
	root := t.TempDir()
	store := NewStore(localfs.New(root), "renders")

	src := filepath.Join(t.TempDir(), "render.mp4")
	if err := os.WriteFile(src, []byte("mp4 bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	handle, err := store.Persist(context.Background(), "job-1", video.Artifact{Path: src, ContentType: "video/mp4", Ext: "mp4"})
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if handle != "renders/job-1.mp4" {
		t.Errorf("Expected renders/job-1.mp4, got %s", handle)
	}

	rc, ct, size, err := store.Open(context.Background(), handle)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "mp4 bytes" || size != 9 || ct != "video/mp4" {
		t.Errorf("Unexpected object %q %d %s", data, size, ct)
	}
}

func TestPersistFromMemory(t *testing.T) {
	store := NewStore(localfs.New(t.TempDir()), "")
	handle, err := store.Persist(context.Background(), "job-2", video.Artifact{Data: []byte("avi"), Ext: "avi"})
	if err != nil {
		t.Fatal(err)
	}
	if handle != "job-2.avi" {
		t.Errorf("Expected job-2.avi, got %s", handle)
	}
}

type failingProvider struct{}

func (failingProvider) Provider() string { return "broken" }

func (failingProvider) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	return ports.PutObjectOutput{}, fmt.Errorf("quota exceeded")
}

func (failingProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	return nil, "", 0, fmt.Errorf("quota exceeded")
}

func TestStorageErrors(t *testing.T) {
	store := NewStore(failingProvider{}, "renders")
	_, err := store.Persist(context.Background(), "job", video.Artifact{Data: []byte("x"), Ext: "mp4"})
	if !errors.IsCode(err, errors.CodeStorage) {
		t.Errorf("Expected storage error, got %v", err)
	}
	if errors.PublicMessage(err) != "STORAGE_ERROR: artifact could not be stored" {
		t.Errorf("Unexpected public message %q", errors.PublicMessage(err))
	}

	if _, err := store.Persist(context.Background(), "job", video.Artifact{Path: "/nonexistent/render.mp4"}); !errors.IsCode(err, errors.CodeStorage) {
		t.Errorf("Expected storage error for missing file, got %v", err)
	}

	missing := NewStore(localfs.New(t.TempDir()), "renders")
	if _, _, _, err := missing.Open(context.Background(), "renders/none.mp4"); !errors.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}
