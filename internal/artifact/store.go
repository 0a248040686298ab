// Package artifact persists finished videos through a storage provider.
package artifact

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/ports"
	"github.com/ivlev/daybyday/internal/video"
)

// Store implements engine.ArtifactStore. Keys look like <prefix>/<job>.<ext>.
type Store struct {
	Provider ports.StorageProvider
	Prefix   string
}

func NewStore(p ports.StorageProvider, prefix string) *Store {
	return &Store{Provider: p, Prefix: prefix}
}

func (s *Store) key(jobID, ext string) string {
	if ext == "" {
		ext = "bin"
	}
	return path.Join(s.Prefix, jobID+"."+ext)
}

// Persist copies the artifact out of the job directory and returns the
// handle to read it back with.
func (s *Store) Persist(ctx context.Context, jobID string, a video.Artifact) (string, error) {
	rc, err := a.Open()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeStorage, "artifact.open", "artifact could not be stored")
	}
	defer rc.Close()

	size := int64(len(a.Data))
	if a.Path != "" {
		if st, err := os.Stat(a.Path); err == nil {
			size = st.Size()
		}
	}

	out, err := s.Provider.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   s.key(jobID, a.Ext),
		ContentType: a.ContentType,
		Reader:      rc,
		Size:        size,
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeStorage, "artifact.put", "artifact could not be stored").
			WithField("provider", s.Provider.Provider())
	}
	return out.ObjectKey, nil
}

// Open streams a persisted artifact.
func (s *Store) Open(ctx context.Context, handle string) (io.ReadCloser, string, int64, error) {
	rc, ct, size, err := s.Provider.GetObject(ctx, handle)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", 0, errors.NotFound("artifact", handle)
		}
		return nil, "", 0, errors.WrapWithCode(err, errors.CodeStorage, "artifact.get", "artifact could not be read").
			WithField("provider", s.Provider.Provider())
	}
	return rc, ct, size, nil
}
