package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/nva0070/flicks-backend/internal/analytics"
	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/pipeline"
	"github.com/nva0070/flicks-backend/internal/sessions"
	"github.com/nva0070/flicks-backend/internal/storage"
	"github.com/nva0070/flicks-backend/internal/transcoder"
	"github.com/nva0070/flicks-backend/internal/workspace"
)

type testServer struct {
	router   *mux.Router
	db       *database.Database
	pipeline *pipeline.Pipeline
	ownerID  int64
}

// newTestServer stands up the full handler stack over real sqlite and
// local storage, with transcoding disabled and one ingest worker.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.New(ctx, filepath.Join(dir, "flicks.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backend, err := storage.NewLocal(filepath.Join(dir, "objects"), "/api/media/object")
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}

	workspaces, err := workspace.NewManager(filepath.Join(dir, "work"))
	if err != nil {
		t.Fatalf("workspace.NewManager: %v", err)
	}

	trans := transcoder.New(transcoder.Config{Enabled: false})
	pl := pipeline.New(db, backend, workspaces, trans, 8, nil)
	pl.StartWorkers(1)
	t.Cleanup(pl.StopWorkers)

	agg := analytics.New(db)
	tracker := sessions.New(db, agg)

	h := New(db, pl, tracker, agg, backend)

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	mediaAPI := r.PathPrefix("/api/media").Subrouter()
	mediaAPI.HandleFunc("/asset/{id}", h.GetAsset).Methods("GET")
	mediaAPI.HandleFunc("/asset/{id}", h.DeleteAsset).Methods("DELETE")
	mediaAPI.HandleFunc("/asset/{id}/content", h.GetAssetContent).Methods("GET")
	mediaAPI.HandleFunc("/asset/{id}/primary", h.SetPrimary).Methods("POST")
	mediaAPI.HandleFunc("/asset/{id}/display", h.UpdateAssetDisplay).Methods("PATCH")
	mediaAPI.HandleFunc("/object/{ref}", h.GetObjectContent).Methods("GET")
	mediaAPI.HandleFunc("/{ownerType}/{ownerID}", h.UploadMedia).Methods("POST")
	mediaAPI.HandleFunc("/{ownerType}/{ownerID}", h.ListGallery).Methods("GET")

	flicks := r.PathPrefix("/api/flicks").Subrouter()
	flicks.HandleFunc("/sessions/start", h.StartSession).Methods("POST")
	flicks.HandleFunc("/sessions/end", h.EndSession).Methods("POST")
	flicks.HandleFunc("/analytics/{assetId}", h.GetAnalytics).Methods("GET")

	ownerID, err := db.CreateEntity(ctx, "product", "integration test product")
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}

	return &testServer{router: r, db: db, pipeline: pl, ownerID: ownerID}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postJSON(path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

// multipartUpload builds a multipart request with a file plus form
// fields.
func multipartUpload(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 120, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeAsset(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var asset map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &asset); err != nil {
		t.Fatalf("decoding asset response: %v (body %q)", err, w.Body.String())
	}
	return asset
}

// uploadAndWait uploads media and polls the asset endpoint until the
// ingest worker finishes.
func (ts *testServer) uploadAndWait(t *testing.T, filename string, content []byte, fields map[string]string) map[string]interface{} {
	t.Helper()

	path := "/api/media/product/" + int64String(ts.ownerID)
	w := ts.do(multipartUpload(t, path, filename, content, fields))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}

	asset := decodeAsset(t, w)
	id := int64(asset["id"].(float64))

	deadline := time.Now().Add(10 * time.Second)
	for {
		w := ts.do(httptest.NewRequest("GET", "/api/media/asset/"+int64String(id), nil))
		if w.Code != http.StatusOK {
			t.Fatalf("poll status %d: %s", w.Code, w.Body.String())
		}
		asset = decodeAsset(t, w)
		status := asset["status"].(string)
		if status == database.AssetStatusReady {
			return asset
		}
		if status == database.AssetStatusFailed {
			t.Fatalf("asset %d failed during ingest", id)
		}
		if time.Now().After(deadline) {
			t.Fatalf("asset %d stuck in %q", id, status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
