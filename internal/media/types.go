// Package media implements deterministic image normalization for product
// photos (square crop) and promotional banners (fixed widescreen box).
package media

// Result is the outcome of a normalization pass. Bytes always holds
// servable content: the normalized output on success, or the caller's
// original input unchanged when Degraded is set. Reason explains the
// degradation for logs; it is never surfaced to end users.
type Result struct {
	Bytes    []byte
	Degraded bool
	Reason   string
}

func ok(b []byte) Result {
	return Result{Bytes: b}
}

func degraded(original []byte, reason string) Result {
	return Result{Bytes: original, Degraded: true, Reason: reason}
}
