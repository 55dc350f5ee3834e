package transcoder

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestProbeMissingFileReturnsNil(t *testing.T) {
	tr := New(Config{Enabled: true, ProbeTimeout: 5 * time.Second})

	// Works whether or not ffprobe is installed: a missing binary and a
	// missing input both mean the duration is unknown, not an error.
	if d := tr.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); d != nil {
		t.Errorf("Probe on missing file = %d, want nil", *d)
	}
}

func TestTranscodeDisabled(t *testing.T) {
	tr := New(Config{Enabled: false})

	err := tr.Transcode(context.Background(), "in.mp4", "out.mp4")
	if err == nil {
		t.Fatal("Transcode with transcoding disabled should error")
	}
}

func TestNewAppliesDefaultTimeouts(t *testing.T) {
	tr := New(Config{Enabled: true})

	if tr.config.ProbeTimeout != DefaultProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want %v", tr.config.ProbeTimeout, DefaultProbeTimeout)
	}
	if tr.config.TranscodeTimeout != DefaultTranscodeTimeout {
		t.Errorf("TranscodeTimeout = %v, want %v", tr.config.TranscodeTimeout, DefaultTranscodeTimeout)
	}
}

func TestCleanupWithNoProcesses(t *testing.T) {
	tr := New(Config{Enabled: true})
	tr.Cleanup()
}
