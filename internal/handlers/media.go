package handlers

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/mediatypes"
	"github.com/nva0070/flicks-backend/internal/pipeline"
	"github.com/nva0070/flicks-backend/internal/storage"
	"github.com/nva0070/flicks-backend/internal/streaming"
)

// multipart memory threshold; larger parts spill to temp files.
const uploadMemoryLimit = 10 << 20

// UploadMedia accepts a multipart upload and enqueues it for ingest.
// The response carries the asset in its pending state; clients poll
// GetAsset for the ready transition.
func (h *Handlers) UploadMedia(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerType := vars["ownerType"]
	ownerID, ok := pathInt64(r, "ownerID")
	if !ok {
		writeJSONError(w, "Invalid owner id", http.StatusBadRequest)
		return
	}

	// Bound the request body before touching the multipart reader. The
	// pipeline enforces the per-kind ceilings; this is the outer limit.
	r.Body = http.MaxBytesReader(w, r.Body, pipeline.MaxVideoBytes+uploadMemoryLimit)

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logging.Error("Failed to read upload %q: %v", header.Filename, err)
		writeJSONError(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	req := &pipeline.IngestRequest{
		OwnerType:         ownerType,
		OwnerID:           ownerID,
		Kind:              mediatypes.Kind(r.FormValue("kind")),
		FileName:          header.Filename,
		Data:              data,
		Profile:           r.FormValue("profile"),
		MarkPrimary:       formBool(r, "primary"),
		SkipNormalization: formBool(r, "skip_normalization"),
		AltText:           r.FormValue("alt_text"),
	}
	if order, err := strconv.Atoi(r.FormValue("display_order")); err == nil {
		req.DisplayOrder = order
	}

	asset, err := h.pipeline.Enqueue(r.Context(), req)
	if err != nil {
		var verr *pipeline.ValidationError
		switch {
		case errors.As(err, &verr):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{
				"error":  verr.Message,
				"reason": verr.Reason,
			})
		case errors.Is(err, database.ErrNotFound):
			writeJSONError(w, "Unknown owner", http.StatusNotFound)
		default:
			logging.Error("Upload for %s/%d failed: %v", ownerType, ownerID, err)
			writeJSONError(w, "Upload failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, h.withURL(asset))
}

// GetAsset returns a single asset descriptor.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	asset, err := h.db.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Asset not found", http.StatusNotFound)
		} else {
			logging.Error("GetAsset %d: %v", id, err)
			writeJSONError(w, "Failed to load asset", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.withURL(asset))
}

// GetAssetContent streams the canonical object for an asset.
func (h *Handlers) GetAssetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	asset, err := h.db.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Asset not found", http.StatusNotFound)
		} else {
			logging.Error("GetAssetContent %d: %v", id, err)
			writeJSONError(w, "Failed to load asset", http.StatusInternalServerError)
		}
		return
	}

	if asset.Status != database.AssetStatusReady || asset.CanonicalRef == "" {
		writeJSONError(w, "Asset not ready", http.StatusConflict)
		return
	}

	f, err := h.backend.Open(r.Context(), storage.Ref(asset.CanonicalRef))
	if err != nil {
		logging.Error("Failed to open object for asset %d: %v", id, err)
		writeJSONError(w, "Failed to open asset content", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(asset))
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if err := streaming.Stream(r.Context(), w, f, streaming.DefaultConfig()); err != nil {
		// Headers are gone at this point; log and let the connection die.
		if !errors.Is(err, streaming.ErrClientGone) {
			logging.Warn("Streaming asset %d aborted: %v", id, err)
		}
	}
}

// GetObjectContent serves a stored object by its reference. This is the
// route behind the url field on asset descriptors.
func (h *Handlers) GetObjectContent(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if ref == "" {
		writeJSONError(w, "Invalid object reference", http.StatusBadRequest)
		return
	}

	f, err := h.backend.Open(r.Context(), storage.Ref(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, "Object not found", http.StatusNotFound)
		} else {
			logging.Error("Failed to open object %s: %v", ref, err)
			writeJSONError(w, "Failed to open object", http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()

	ct := mime.TypeByExtension(mediatypes.NormalizeExt(ref))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	// Stored objects never change under a ref; only the mapping from
	// asset to ref does.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")

	if err := streaming.Stream(r.Context(), w, f, streaming.DefaultConfig()); err != nil {
		if !errors.Is(err, streaming.ErrClientGone) {
			logging.Warn("Streaming object %s aborted: %v", ref, err)
		}
	}
}

// ListGallery returns every asset attached to an owner, primary first.
func (h *Handlers) ListGallery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerType := vars["ownerType"]
	ownerID, ok := pathInt64(r, "ownerID")
	if !ok {
		writeJSONError(w, "Invalid owner id", http.StatusBadRequest)
		return
	}

	assets, err := h.db.ListAssetsByOwner(r.Context(), ownerType, ownerID)
	if err != nil {
		logging.Error("ListGallery %s/%d: %v", ownerType, ownerID, err)
		writeJSONError(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}

	for _, a := range assets {
		h.withURL(a)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"ownerType": ownerType,
		"ownerId":   ownerID,
		"assets":    assets,
	})
}

// SetPrimary designates an asset as the primary for its owner and kind,
// unsetting any sibling that held the flag.
func (h *Handlers) SetPrimary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	if err := h.db.SetPrimary(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Asset not found", http.StatusNotFound)
		} else {
			logging.Error("SetPrimary %d: %v", id, err)
			writeJSONError(w, "Failed to set primary", http.StatusInternalServerError)
		}
		return
	}

	writeJSONStatus(w, "success")
}

// UpdateAssetDisplay updates gallery presentation fields.
func (h *Handlers) UpdateAssetDisplay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	var body struct {
		DisplayOrder int    `json:"displayOrder"`
		AltText      string `json:"altText"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateAssetDisplay(r.Context(), id, body.DisplayOrder, body.AltText); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Asset not found", http.StatusNotFound)
		} else {
			logging.Error("UpdateAssetDisplay %d: %v", id, err)
			writeJSONError(w, "Failed to update asset", http.StatusInternalServerError)
		}
		return
	}

	writeJSONStatus(w, "success")
}

// DeleteAsset removes an asset along with its stored objects, sessions,
// and analytics.
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	deleted, err := h.db.DeleteAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Asset not found", http.StatusNotFound)
		} else {
			logging.Error("DeleteAsset %d: %v", id, err)
			writeJSONError(w, "Failed to delete asset", http.StatusInternalServerError)
		}
		return
	}

	// The record is gone; object deletion failures only leak disk, so
	// log them instead of failing the request.
	for _, ref := range objectRefs(deleted) {
		if err := h.backend.Delete(r.Context(), ref); err != nil {
			logging.Error("Failed to delete object %s for asset %d: %v", ref, id, err)
		}
	}

	writeJSONStatus(w, "success")
}

// withURL fills the client-servable URL on assets that have canonical
// content.
func (h *Handlers) withURL(a *database.MediaAsset) *database.MediaAsset {
	if a.CanonicalRef != "" {
		a.URL = h.backend.URL(storage.Ref(a.CanonicalRef))
	}
	return a
}

// objectRefs lists the distinct stored objects behind an asset. Degraded
// assets alias canonical to raw, so the pair collapses to one ref.
func objectRefs(a *database.MediaAsset) []storage.Ref {
	refs := []storage.Ref{}
	if a.RawRef != "" {
		refs = append(refs, storage.Ref(a.RawRef))
	}
	if a.CanonicalRef != "" && a.CanonicalRef != a.RawRef {
		refs = append(refs, storage.Ref(a.CanonicalRef))
	}
	return refs
}

func contentTypeFor(a *database.MediaAsset) string {
	if a.Kind == string(mediatypes.KindVideo) && !a.Degraded {
		// Transcoded output is always mp4.
		return "video/mp4"
	}
	if ct := mime.TypeByExtension(mediatypes.NormalizeExt(a.FileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func formBool(r *http.Request, field string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(field)))
	return err == nil && v
}
