package handlers

import (
	"net/http"

	"github.com/nva0070/flicks-backend/internal/logging"
)

// GetAnalytics returns the aggregate view report for an asset. Assets
// that were never viewed report zeroes rather than 404: absence of
// sessions is a valid answer.
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "assetId")
	if !ok {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	report, err := h.analytics.Read(r.Context(), id)
	if err != nil {
		logging.Error("GetAnalytics %d: %v", id, err)
		writeJSONError(w, "Failed to read analytics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, report)
}
