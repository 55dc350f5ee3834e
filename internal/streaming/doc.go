/*
Package streaming provides timeout-protected streaming for asset content
delivery.

Slow or disconnected clients can hold server resources indefinitely when
streaming large responses. This package wraps http.ResponseWriter with
timeout protection so stalled connections are detected and terminated.

  - Per-write timeouts: individual writes are bounded by a configurable deadline
  - Idle detection: connections with no data flow are terminated
  - Chunked transfer: large payloads are split so slow clients surface early
  - Client disconnect detection: leverages the request context

Basic usage:

	f, err := backend.Open(r.Context(), ref)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	if err := streaming.Stream(r.Context(), w, f, streaming.DefaultConfig()); err != nil {
		// Headers are already written; log and drop the connection.
	}
*/
package streaming
