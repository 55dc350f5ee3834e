package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.WriteTimeout != 30*time.Second {
		t.Errorf("Expected WriteTimeout=30s, got %v", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout=60s, got %v", config.IdleTimeout)
	}
	if config.ChunkSize != 64*1024 {
		t.Errorf("Expected ChunkSize=64KB, got %d", config.ChunkSize)
	}
}

func TestWriterWrite(t *testing.T) {
	w := httptest.NewRecorder()
	sw := NewWriter(context.Background(), w, DefaultConfig())
	defer sw.Close()

	data := []byte("asset content")
	n, err := sw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	written, _ := sw.Stats()
	if written != int64(len(data)) {
		t.Errorf("Expected stats=%d, got %d", len(data), written)
	}
	if w.Body.String() != "asset content" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestWriterChunkedWrite(t *testing.T) {
	w := httptest.NewRecorder()
	config := DefaultConfig()
	config.ChunkSize = 8

	sw := NewWriter(context.Background(), w, config)
	defer sw.Close()

	data := bytes.Repeat([]byte("x"), 100)
	n, err := sw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 100 {
		t.Errorf("Expected 100 bytes written, got %d", n)
	}
	if w.Body.Len() != 100 {
		t.Errorf("Body has %d bytes", w.Body.Len())
	}
}

func TestWriterAfterClose(t *testing.T) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())

	if err := sw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Second close is a no-op.
	if err := sw.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	if _, err := sw.Write([]byte("late")); !errors.Is(err, ErrCanceled) {
		t.Errorf("Write after close = %v, want ErrCanceled", err)
	}
}

func TestWriterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewWriter(ctx, httptest.NewRecorder(), DefaultConfig())
	defer sw.Close()

	cancel()
	// Give the derived context time to observe the cancellation.
	time.Sleep(10 * time.Millisecond)

	if _, err := sw.Write([]byte("data")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Write after disconnect = %v, want ErrClientGone", err)
	}
}

func TestStream(t *testing.T) {
	w := httptest.NewRecorder()
	src := bytes.NewReader([]byte("full asset payload"))

	if err := Stream(context.Background(), w, src, DefaultConfig()); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if w.Body.String() != "full asset payload" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}
