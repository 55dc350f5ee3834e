// Package workspace provides scoped temporary staging areas for media
// processing. Each acquisition gets a collision-free directory; release
// removes everything the operation staged, on every exit path.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

// Manager hands out isolated staging directories under a common root.
type Manager struct {
	root string
}

// NewManager creates a workspace manager rooted at dir. The root is
// created if missing.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root %s: %w", dir, err)
	}
	return &Manager{root: dir}, nil
}

// Handle is one acquired staging area. All paths returned by Write live
// beneath the handle's directory and disappear on Release.
type Handle struct {
	dir      string
	released bool
}

// Acquire creates a fresh staging directory. The uuid token in the path
// guarantees concurrent acquisitions never collide.
func (m *Manager) Acquire() (*Handle, error) {
	dir := filepath.Join(m.root, uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("acquiring workspace: %w", err)
	}
	metrics.WorkspacesActive.Inc()
	return &Handle{dir: dir}, nil
}

// Dir returns the handle's staging directory.
func (h *Handle) Dir() string {
	return h.dir
}

// Write stages data under the handle using name and returns the local path.
func (h *Handle) Write(name string, data []byte) (string, error) {
	if h.released {
		return "", fmt.Errorf("workspace already released")
	}
	path := filepath.Join(h.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}
	return path, nil
}

// Path returns a local path under the handle for name without creating the
// file. Used to hand output destinations to external tools.
func (h *Handle) Path(name string) string {
	return filepath.Join(h.dir, filepath.Base(name))
}

// Read returns the contents of a staged file.
func (h *Handle) Read(localPath string) ([]byte, error) {
	if h.released {
		return nil, fmt.Errorf("workspace already released")
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("reading staged file %s: %w", localPath, err)
	}
	return data, nil
}

// Release removes the staging directory and everything in it. Safe to call
// more than once; intended for defer. A failed removal is logged and
// counted but does not fail the caller.
func (m *Manager) Release(h *Handle) {
	if h == nil || h.released {
		return
	}
	h.released = true
	metrics.WorkspacesActive.Dec()

	if err := os.RemoveAll(h.dir); err != nil {
		logging.Warn("Failed to release workspace %s: %v", h.dir, err)
		metrics.WorkspaceReleaseFailures.Inc()
	}
}
