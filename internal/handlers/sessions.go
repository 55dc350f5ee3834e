package handlers

import (
	"errors"
	"net/http"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/middleware"
	"github.com/nva0070/flicks-backend/internal/sessions"
)

// StartSession opens a view session against a video asset.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssetID int64 `json:"assetId"`
	}
	if err := decodeJSONBody(r, &body); err != nil || body.AssetID <= 0 {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client := sessions.ClientInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}

	result, err := h.tracker.Start(r.Context(), body.AssetID, client)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Asset not found", http.StatusNotFound)
		} else {
			logging.Error("StartSession for asset %d: %v", body.AssetID, err)
			writeJSONError(w, "Failed to start session", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}

// EndSession closes an open view session. A session that does not exist
// or was already closed reports 404; the close is the exactly-once gate
// for view recording, so retries cannot double-count.
func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID      string `json:"sessionId"`
		WatchSeconds   int    `json:"watchSeconds"`
		PercentWatched int    `json:"percentWatched"`
	}
	if err := decodeJSONBody(r, &body); err != nil || body.SessionID == "" {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.WatchSeconds < 0 || body.PercentWatched < 0 || body.PercentWatched > 100 {
		writeJSONError(w, "Invalid watch figures", http.StatusBadRequest)
		return
	}

	result, err := h.tracker.End(r.Context(), body.SessionID, body.WatchSeconds, body.PercentWatched)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Session not found or already closed", http.StatusNotFound)
		} else {
			logging.Error("EndSession %s: %v", body.SessionID, err)
			writeJSONError(w, "Failed to end session", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}
