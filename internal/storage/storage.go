// Package storage provides the object storage seam for canonical and raw
// media bytes. The production backend is a local directory; everything
// above it talks to the Backend interface so the implementation can move
// to object storage without touching the pipeline.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nva0070/flicks-backend/internal/filesystem"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

// Ref is an opaque reference to a stored object.
type Ref string

// Backend stores and serves media object bytes.
type Backend interface {
	// Store persists data and returns an opaque reference. suggestedName
	// only influences the stored object's name for operators; uniqueness
	// is guaranteed regardless.
	Store(ctx context.Context, data []byte, suggestedName string) (Ref, error)

	// Fetch returns the bytes for a stored object.
	Fetch(ctx context.Context, ref Ref) ([]byte, error)

	// Open returns a reader over a stored object, for streaming large
	// objects without buffering them.
	Open(ctx context.Context, ref Ref) (*os.File, error)

	// URL returns a client-servable URL for the object.
	URL(ref Ref) string

	// Delete removes a stored object. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, ref Ref) error
}

// Local is a directory-backed Backend. Writes go through the NFS retry
// helpers so a storage volume exported over NFS behaves.
type Local struct {
	root        string
	urlPrefix   string
	retryConfig filesystem.RetryConfig
}

// NewLocal creates a Local backend rooted at dir. urlPrefix is prepended
// to object names when building URLs (e.g. "/media/objects").
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", dir, err)
	}
	return &Local{
		root:        dir,
		urlPrefix:   strings.TrimSuffix(urlPrefix, "/"),
		retryConfig: filesystem.DefaultRetryConfig(),
	}, nil
}

// objectName builds a collision-free stored name. The uuid prefix
// guarantees uniqueness; the sanitized original name keeps objects
// recognizable on disk.
func objectName(suggestedName string) string {
	base := filepath.Base(suggestedName)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "object"
	}
	return uuid.NewString() + "_" + base
}

func (l *Local) Store(ctx context.Context, data []byte, suggestedName string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := objectName(suggestedName)
	path := filepath.Join(l.root, name)

	if err := filesystem.WriteFileWithRetry(path, data, 0o644, l.retryConfig); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("store", "error").Inc()
		return "", fmt.Errorf("storing object %s: %w", name, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("store", "ok").Inc()
	metrics.StorageBytesWritten.Add(float64(len(data)))
	return Ref(name), nil
}

func (l *Local) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := filesystem.ReadFileWithRetry(l.path(ref), l.retryConfig)
	if err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("fetch", "error").Inc()
		return nil, fmt.Errorf("fetching object %s: %w", ref, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("fetch", "ok").Inc()
	return data, nil
}

func (l *Local) Open(ctx context.Context, ref Ref) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := filesystem.OpenWithRetry(l.path(ref), l.retryConfig)
	if err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("open", "error").Inc()
		return nil, fmt.Errorf("opening object %s: %w", ref, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("open", "ok").Inc()
	return f, nil
}

func (l *Local) URL(ref Ref) string {
	return l.urlPrefix + "/" + string(ref)
}

func (l *Local) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := filesystem.RemoveWithRetry(l.path(ref), l.retryConfig); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting object %s: %w", ref, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// path maps a ref to its on-disk location. Base guards against refs
// containing path separators.
func (l *Local) path(ref Ref) string {
	return filepath.Join(l.root, filepath.Base(string(ref)))
}
