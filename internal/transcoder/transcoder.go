// Package transcoder shells out to ffprobe and ffmpeg to probe video
// duration and normalize uploads to the standard delivery profile.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

const (
	// DefaultProbeTimeout bounds a duration probe.
	DefaultProbeTimeout = 30 * time.Second

	// DefaultTranscodeTimeout bounds a full transcode job.
	DefaultTranscodeTimeout = 10 * time.Minute
)

// Config holds transcoder settings.
type Config struct {
	Enabled          bool
	ProbeTimeout     time.Duration
	TranscodeTimeout time.Duration
}

// DefaultConfig returns transcoder defaults with availability detected
// from PATH.
func DefaultConfig() Config {
	return Config{
		Enabled:          ToolsAvailable(),
		ProbeTimeout:     DefaultProbeTimeout,
		TranscodeTimeout: DefaultTranscodeTimeout,
	}
}

// ToolsAvailable reports whether both ffprobe and ffmpeg are on PATH.
func ToolsAvailable() bool {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return false
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	return true
}

// Transcoder runs external probe and transcode processes. Every
// invocation carries a deadline with forced termination; a hung utility
// can never hang the pipeline.
type Transcoder struct {
	config    Config
	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates a Transcoder.
func New(config Config) *Transcoder {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	if config.TranscodeTimeout <= 0 {
		config.TranscodeTimeout = DefaultTranscodeTimeout
	}
	return &Transcoder{
		config:    config,
		processes: make(map[string]*exec.Cmd),
	}
}

// IsEnabled reports whether transcoding is enabled.
func (t *Transcoder) IsEnabled() bool {
	return t.config.Enabled
}

// Probe returns the video duration in whole seconds, or nil when the
// duration cannot be determined. Probe failure is never fatal.
func (t *Transcoder) Probe(ctx context.Context, filePath string) *int {
	ctx, cancel := context.WithTimeout(ctx, t.config.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Warn("ffprobe failed for %s: %v - %s", filePath, err, strings.TrimSpace(stderr.String()))
		metrics.ProbesTotal.WithLabelValues("failed").Inc()
		return nil
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		logging.Warn("ffprobe returned unparsable duration for %s: %q", filePath, stdout.String())
		metrics.ProbesTotal.WithLabelValues("failed").Inc()
		return nil
	}

	metrics.ProbesTotal.WithLabelValues("ok").Inc()
	duration := int(seconds)
	return &duration
}

// Transcode normalizes inputPath to the standard delivery profile,
// writing the result to outputPath: H.264 at 4500k (max 5000k, buffer
// 8000k), AAC 192k at 48kHz with loudness normalization, and the moov
// atom relocated for web streaming. A non-zero exit or timeout returns
// an error; the caller falls back to the original bytes.
func (t *Transcoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	if !t.config.Enabled {
		return fmt.Errorf("transcoding disabled")
	}

	ctx, cancel := context.WithTimeout(ctx, t.config.TranscodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-c:v", "libx264",
		"-b:v", "4500k",
		"-maxrate", "5000k",
		"-bufsize", "8000k",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "48000",
		"-af", "loudnorm",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.processMu.Lock()
	t.processes[inputPath] = cmd
	t.processMu.Unlock()

	defer func() {
		t.processMu.Lock()
		delete(t.processes, inputPath)
		t.processMu.Unlock()
	}()

	start := time.Now()
	err := cmd.Run()
	metrics.TranscodeJobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logging.Error("FFmpeg timed out after %v for %s", t.config.TranscodeTimeout, inputPath)
			metrics.TranscodeJobsTotal.WithLabelValues("timeout").Inc()
			return fmt.Errorf("transcode timed out: %w", ctx.Err())
		}
		logging.Error("FFmpeg failed for %s: %v - %s", inputPath, err, strings.TrimSpace(stderr.String()))
		metrics.TranscodeJobsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("transcode failed: %w", err)
	}

	metrics.TranscodeJobsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Cleanup kills all active transcode processes. Called on shutdown.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcode process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcode process for %s: %v", path, err)
			}
		}
	}
}
