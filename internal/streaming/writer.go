package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nva0070/flicks-backend/internal/logging"
)

var (
	// ErrWriteTimeout indicates a single write exceeded the configured
	// timeout, usually because the client is draining too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the client disconnected mid-stream.
	ErrClientGone = errors.New("client disconnected")

	// ErrCanceled indicates the stream was stopped programmatically.
	ErrCanceled = errors.New("stream canceled")
)

// Config controls timeout behavior when delivering asset content.
type Config struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// IdleTimeout bounds the gap between successful writes.
	IdleTimeout time.Duration
	// ChunkSize splits large payloads so slow clients are detected
	// between chunks instead of at the end (0 = write as received).
	ChunkSize int
}

// DefaultConfig returns the settings used for asset delivery.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer wraps an http.ResponseWriter with timeout protection so a
// stalled download cannot pin a handler goroutine indefinitely.
type Writer struct {
	w         http.ResponseWriter
	ctx       context.Context
	cancel    context.CancelFunc
	config    Config
	flusher   http.Flusher
	startTime time.Time

	mu        sync.Mutex
	lastWrite time.Time
	written   int64
	closed    bool
}

// NewWriter creates a timeout-protected writer bound to the request
// context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	sctx, cancel := context.WithCancel(ctx)
	sw := &Writer{
		w:         w,
		ctx:       sctx,
		cancel:    cancel,
		config:    config,
		startTime: time.Now(),
		lastWrite: time.Now(),
	}
	if flusher, ok := w.(http.Flusher); ok {
		sw.flusher = flusher
	}
	go sw.idleChecker()
	return sw
}

func (sw *Writer) Write(p []byte) (int, error) {
	sw.mu.Lock()
	if sw.closed {
		sw.mu.Unlock()
		return 0, ErrCanceled
	}
	sw.mu.Unlock()

	select {
	case <-sw.ctx.Done():
		return 0, sw.contextError()
	default:
	}

	if sw.config.ChunkSize > 0 && len(p) > sw.config.ChunkSize {
		return sw.writeChunked(p)
	}
	return sw.writeWithTimeout(p)
}

func (sw *Writer) writeChunked(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		select {
		case <-sw.ctx.Done():
			return total, sw.contextError()
		default:
		}

		chunk := sw.config.ChunkSize
		if len(p) < chunk {
			chunk = len(p)
		}

		n, err := sw.writeWithTimeout(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		p = p[chunk:]

		if sw.flusher != nil {
			sw.flusher.Flush()
		}
	}
	return total, nil
}

func (sw *Writer) writeWithTimeout(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			sw.mu.Lock()
			sw.lastWrite = time.Now()
			sw.written += int64(res.n)
			sw.mu.Unlock()
		}
		return res.n, res.err

	case <-time.After(sw.config.WriteTimeout):
		sw.cancel()
		return 0, ErrWriteTimeout

	case <-sw.ctx.Done():
		return 0, sw.contextError()
	}
}

func (sw *Writer) idleChecker() {
	if sw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(sw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.mu.Lock()
			idle := time.Since(sw.lastWrite)
			closed := sw.closed
			sw.mu.Unlock()

			if closed {
				return
			}
			if idle > sw.config.IdleTimeout {
				logging.Warn("Asset stream idle for %v, canceling", idle)
				sw.cancel()
				return
			}

		case <-sw.ctx.Done():
			return
		}
	}
}

func (sw *Writer) contextError() error {
	if sw.ctx.Err() == context.Canceled {
		return ErrClientGone
	}
	return ErrCanceled
}

// Close marks the writer as closed. Safe to call more than once.
func (sw *Writer) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil
	}
	sw.closed = true
	sw.cancel()
	return nil
}

// Stats returns bytes written and elapsed time so far.
func (sw *Writer) Stats() (int64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written, time.Since(sw.startTime)
}

// Stream copies asset content from r to the response with timeout
// protection.
func Stream(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) error {
	sw := NewWriter(ctx, w, config)
	defer sw.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")

	_, err := io.Copy(sw, r)

	written, duration := sw.Stats()
	logging.Debug("Asset stream finished: %d bytes in %v", written, duration)

	return err
}
