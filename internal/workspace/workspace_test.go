package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireWriteReadRelease(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	path, err := h.Write("upload.mp4", []byte("video bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(path, h.Dir()) {
		t.Errorf("staged path %s not under workspace dir %s", path, h.Dir())
	}

	data, err := h.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "video bytes" {
		t.Errorf("Read = %q, want %q", data, "video bytes")
	}

	m.Release(h)

	if _, err := os.Stat(h.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace dir still exists after Release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	m.Release(h)
	m.Release(h)
	m.Release(nil)
}

func TestWriteAfterReleaseFails(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	m.Release(h)

	if _, err := h.Write("late.bin", []byte("x")); err == nil {
		t.Error("Write after Release should fail")
	}
	if _, err := h.Read(filepath.Join(h.Dir(), "late.bin")); err == nil {
		t.Error("Read after Release should fail")
	}
}

func TestConcurrentAcquisitionsDoNotCollide(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	const n = 32
	dirs := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			h, err := m.Acquire()
			if err != nil {
				dirs <- ""
				return
			}
			defer m.Release(h)
			if _, err := h.Write("data", []byte("x")); err != nil {
				dirs <- ""
				return
			}
			dirs <- h.Dir()
		}()
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		dir := <-dirs
		if dir == "" {
			t.Fatal("concurrent acquisition failed")
		}
		if seen[dir] {
			t.Fatalf("duplicate workspace dir %s", dir)
		}
		seen[dir] = true
	}
}

func TestWriteSanitizesName(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer m.Release(h)

	path, err := h.Write("../../escape.txt", []byte("x"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != h.Dir() {
		t.Errorf("path %s escaped workspace dir %s", path, h.Dir())
	}
}
