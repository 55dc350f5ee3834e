package memory

import (
	"testing"
	"time"
)

func TestMonitorWithoutLimit(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Millisecond,
	})
	// Only matters on hosts without GOMEMLIMIT, but the contract holds
	// either way: a fresh monitor is never paused.
	if m.IsPaused() {
		t.Error("new monitor should not start paused")
	}
	if !m.WaitIfPaused() {
		t.Error("WaitIfPaused should return true when not paused")
	}
}

func TestMonitorPauseResume(t *testing.T) {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1 << 40, // far above any test allocation
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
	})

	m.checkMemory()
	if m.IsPaused() {
		t.Fatal("monitor paused despite huge limit")
	}
	if m.ShouldThrottle() {
		t.Error("ShouldThrottle true despite huge limit")
	}

	// Force the paused state directly and verify WaitIfPaused unblocks
	// when the monitor is stopped.
	m.mu.Lock()
	m.isPaused = true
	m.mu.Unlock()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while still paused")
	case <-time.After(20 * time.Millisecond):
	}

	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused should return false after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not unblock after Stop")
	}
}

func TestGetStats(t *testing.T) {
	m := NewMonitor(Config{MemoryLimitBytes: 1000, CheckInterval: time.Hour})
	m.mu.Lock()
	m.current = 500
	m.mu.Unlock()

	current, limit, usage := m.GetStats()
	if current != 500 {
		t.Errorf("current = %d, want 500", current)
	}
	if limit != 1000 {
		t.Errorf("limit = %d, want 1000", limit)
	}
	if usage != 0.5 {
		t.Errorf("usage = %v, want 0.5", usage)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{1 << 30, "1.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
