package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/mediatypes"
	"github.com/nva0070/flicks-backend/internal/storage"
	"github.com/nva0070/flicks-backend/internal/transcoder"
	"github.com/nva0070/flicks-backend/internal/workspace"
)

type testEnv struct {
	pipeline *Pipeline
	db       *database.Database
	backend  *storage.Local
	ownerID  int64
}

// newTestEnv builds a pipeline over real sqlite and a local storage
// backend, with transcoding disabled so video normalization always
// takes the fallback path.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.New(ctx, filepath.Join(dir, "flicks.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backend, err := storage.NewLocal(filepath.Join(dir, "objects"), "/media/objects")
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}

	workspaces, err := workspace.NewManager(filepath.Join(dir, "work"))
	if err != nil {
		t.Fatalf("workspace.NewManager: %v", err)
	}

	ownerID, err := db.CreateEntity(ctx, "product", "test product")
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}

	tc := transcoder.New(transcoder.Config{Enabled: false})
	return &testEnv{
		pipeline: New(db, backend, workspaces, tc, 8, nil),
		db:       db,
		backend:  backend,
		ownerID:  ownerID,
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 99, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) imageRequest(t *testing.T, w, h int) *IngestRequest {
	return &IngestRequest{
		OwnerType: "product",
		OwnerID:   e.ownerID,
		Kind:      mediatypes.KindImage,
		FileName:  "photo.jpg",
		Data:      jpegBytes(t, w, h),
	}
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		req        *IngestRequest
		wantReason string
	}{
		{
			name:       "unknown kind",
			req:        &IngestRequest{Kind: "audio", FileName: "a.mp3", Data: []byte("x")},
			wantReason: ReasonBadKind,
		},
		{
			name:       "empty upload",
			req:        &IngestRequest{Kind: mediatypes.KindImage, FileName: "a.jpg"},
			wantReason: ReasonEmptyUpload,
		},
		{
			name:       "video extension on image kind",
			req:        &IngestRequest{Kind: mediatypes.KindImage, FileName: "clip.mp4", Data: []byte("x")},
			wantReason: ReasonBadExtension,
		},
		{
			name:       "image extension on video kind",
			req:        &IngestRequest{Kind: mediatypes.KindVideo, FileName: "pic.png", Data: []byte("x")},
			wantReason: ReasonBadExtension,
		},
		{
			name:       "disallowed extension",
			req:        &IngestRequest{Kind: mediatypes.KindImage, FileName: "doc.pdf", Data: []byte("x")},
			wantReason: ReasonBadExtension,
		},
		{
			name:       "oversized image",
			req:        &IngestRequest{Kind: mediatypes.KindImage, FileName: "big.jpg", Data: make([]byte, MaxImageBytes+1)},
			wantReason: ReasonTooLarge,
		},
		{
			name:       "unknown profile",
			req:        &IngestRequest{Kind: mediatypes.KindImage, FileName: "a.jpg", Data: []byte("x"), Profile: "thumbnail"},
			wantReason: ReasonBadProfile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.pipeline.Validate(tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate = %v, want ValidationError", err)
			}
			if verr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", verr.Reason, tt.wantReason)
			}
		})
	}

	okReq := &IngestRequest{Kind: mediatypes.KindVideo, FileName: "clip.webm", Data: []byte("x")}
	if err := env.pipeline.Validate(okReq); err != nil {
		t.Errorf("Validate(valid video) = %v", err)
	}
}

func TestIngestImageProducesSquareCanonical(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset, err := env.pipeline.Ingest(ctx, env.imageRequest(t, 400, 300))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if asset.Status != database.AssetStatusReady {
		t.Errorf("status = %q, want ready", asset.Status)
	}
	if asset.Degraded {
		t.Errorf("asset degraded: %s", asset.DegradeReason)
	}
	if !asset.IsPrimary {
		t.Error("first asset should be primary")
	}
	if asset.CanonicalRef == "" || asset.CanonicalRef == asset.RawRef {
		t.Errorf("canonical ref %q should be a distinct stored object", asset.CanonicalRef)
	}

	canonical, err := env.backend.Fetch(ctx, storage.Ref(asset.CanonicalRef))
	if err != nil {
		t.Fatalf("fetching canonical: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(canonical))
	if err != nil {
		t.Fatalf("decoding canonical: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 300 {
		t.Errorf("canonical is %dx%d, want 300x300", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestIngestBannerProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.imageRequest(t, 2000, 500)
	req.Profile = ProfileBanner

	asset, err := env.pipeline.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	canonical, err := env.backend.Fetch(ctx, storage.Ref(asset.CanonicalRef))
	if err != nil {
		t.Fatalf("fetching canonical: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(canonical))
	if err != nil {
		t.Fatalf("decoding canonical: %v", err)
	}
	if img.Bounds().Dx() != 1280 || img.Bounds().Dy() != 720 {
		t.Errorf("banner is %dx%d, want 1280x720", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestIngestRejectionHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := &IngestRequest{
		OwnerType: "product",
		OwnerID:   env.ownerID,
		Kind:      mediatypes.KindImage,
		FileName:  "malware.exe",
		Data:      []byte("x"),
	}

	_, err := env.pipeline.Ingest(ctx, req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Ingest = %v, want ValidationError", err)
	}

	assets, err := env.db.ListAssetsByOwner(ctx, "product", env.ownerID)
	if err != nil {
		t.Fatalf("ListAssetsByOwner: %v", err)
	}
	if len(assets) != 0 {
		t.Errorf("rejection left %d asset records behind", len(assets))
	}
}

func TestIngestUnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	req := env.imageRequest(t, 100, 100)
	req.OwnerID = 99999

	if _, err := env.pipeline.Ingest(context.Background(), req); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Ingest for unknown owner = %v, want ErrNotFound", err)
	}
}

// Uploading more images leaves exactly one primary: the newest when
// explicitly marked, otherwise the original.
func TestSecondUploadPrimaryRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.pipeline.Ingest(ctx, env.imageRequest(t, 100, 100))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Unmarked second upload: original keeps the flag.
	second, err := env.pipeline.Ingest(ctx, env.imageRequest(t, 100, 100))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if second.IsPrimary {
		t.Error("unmarked second upload became primary")
	}

	// Explicitly marked third upload: flag moves to it.
	req := env.imageRequest(t, 100, 100)
	req.MarkPrimary = true
	third, err := env.pipeline.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !third.IsPrimary {
		t.Error("explicitly marked upload should be primary")
	}

	assets, err := env.db.ListAssetsByOwner(ctx, "product", env.ownerID)
	if err != nil {
		t.Fatalf("ListAssetsByOwner: %v", err)
	}
	primaries := 0
	for _, a := range assets {
		if a.IsPrimary {
			primaries++
			if a.ID != third.ID {
				t.Errorf("primary is asset %d, want %d", a.ID, third.ID)
			}
		}
	}
	if primaries != 1 {
		t.Errorf("%d primary assets, want exactly 1", primaries)
	}
	_ = first
}

// A failing transcode degrades: the canonical content is the original
// upload, byte for byte, and no error reaches the caller.
func TestVideoTranscodeFailureDegradesToOriginal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	original := []byte("not really an mp4 but good enough for the fallback path")
	req := &IngestRequest{
		OwnerType: "product",
		OwnerID:   env.ownerID,
		Kind:      mediatypes.KindVideo,
		FileName:  "clip.mp4",
		Data:      original,
	}

	asset, err := env.pipeline.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if asset.Status != database.AssetStatusReady {
		t.Errorf("status = %q, want ready", asset.Status)
	}
	if !asset.Degraded {
		t.Error("failed transcode should mark the asset degraded")
	}
	if asset.CanonicalRef != asset.RawRef {
		t.Errorf("degraded canonical ref %q should alias raw ref %q", asset.CanonicalRef, asset.RawRef)
	}

	canonical, err := env.backend.Fetch(ctx, storage.Ref(asset.CanonicalRef))
	if err != nil {
		t.Fatalf("fetching canonical: %v", err)
	}
	if !bytes.Equal(canonical, original) {
		t.Error("canonical content differs from the original upload")
	}
}

func TestSkipNormalization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.imageRequest(t, 400, 300)
	req.SkipNormalization = true

	asset, err := env.pipeline.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if asset.Degraded {
		t.Error("skip is not degradation")
	}
	if asset.CanonicalRef != asset.RawRef {
		t.Error("skipped normalization should alias the raw object")
	}

	canonical, err := env.backend.Fetch(ctx, storage.Ref(asset.CanonicalRef))
	if err != nil {
		t.Fatalf("fetching canonical: %v", err)
	}
	if !bytes.Equal(canonical, req.Data) {
		t.Error("skipped upload should be stored unchanged")
	}
}

func TestEnqueueTransitionsPendingToReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pipeline.StartWorkers(1)
	defer env.pipeline.StopWorkers()

	asset, err := env.pipeline.Enqueue(ctx, env.imageRequest(t, 200, 100))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		got, err := env.db.GetAsset(ctx, asset.ID)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if got.Status == database.AssetStatusReady {
			if got.CanonicalRef == "" {
				t.Error("ready asset has no canonical ref")
			}
			break
		}
		if got.Status == database.AssetStatusFailed {
			t.Fatalf("asset failed: %s", got.DegradeReason)
		}
		if time.Now().After(deadline) {
			t.Fatalf("asset stuck in %q", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Reason: ReasonTooLarge, Message: "upload is 3 bytes"}
	if !strings.Contains(err.Error(), ReasonTooLarge) {
		t.Errorf("Error() = %q, should contain the reason", err.Error())
	}
}

// hugePNG builds a valid PNG signature and IHDR claiming w×h, with no
// pixel data. DecodeConfig only reads the header, which is all the
// pixel-ceiling check needs.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.WriteString("IHDR")
	buf.Write(ihdr)

	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return buf.Bytes()
}

func TestValidateRejectsOversizedPixelImage(t *testing.T) {
	env := newTestEnv(t)

	// 8000×4000 = 32MP, over the decode ceiling.
	req := &IngestRequest{
		OwnerType: "product",
		OwnerID:   env.ownerID,
		Kind:      mediatypes.KindImage,
		FileName:  "huge.png",
		Data:      hugePNG(t, 8000, 4000),
	}

	err := env.pipeline.Validate(req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate = %v, want ValidationError", err)
	}
	if verr.Reason != ReasonTooLarge {
		t.Errorf("reason = %q, want %q", verr.Reason, ReasonTooLarge)
	}

	// At the ceiling is still fine; only over it rejects.
	req.Data = hugePNG(t, 5000, 4000)
	if err := env.pipeline.Validate(req); err != nil {
		t.Errorf("Validate at the pixel ceiling = %v, want nil", err)
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		kind     mediatypes.Kind
		fileName string
		want     string
	}{
		{mediatypes.KindImage, "photo.jpg", "photo.jpg"},
		{mediatypes.KindVideo, "clip.mov", "clip.mp4"},
		{mediatypes.KindVideo, "clip.mp4", "clip.mp4"},
		{mediatypes.KindVideo, "clip", "clip.mp4"},
	}
	for _, tt := range tests {
		req := &IngestRequest{Kind: tt.kind, FileName: tt.fileName}
		if got := canonicalName(req); got != tt.want {
			t.Errorf("canonicalName(%s %q) = %q, want %q", tt.kind, tt.fileName, got, tt.want)
		}
	}
}

func TestStopWorkersDrainsQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Enqueue before any worker exists so the jobs sit in the queue,
	// then let shutdown drain them.
	var ids []int64
	for i := 0; i < 4; i++ {
		asset, err := env.pipeline.Enqueue(ctx, env.imageRequest(t, 120, 80))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, asset.ID)
	}

	env.pipeline.StartWorkers(1)
	env.pipeline.StopWorkers()

	for _, id := range ids {
		got, err := env.db.GetAsset(ctx, id)
		if err != nil {
			t.Fatalf("GetAsset %d: %v", id, err)
		}
		if got.Status != database.AssetStatusReady {
			t.Errorf("asset %d left in %q after drain", id, got.Status)
		}
	}
}
