// Package pipeline orchestrates media ingestion: validation, staging,
// normalization, storage, and asset persistence.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/media"
	"github.com/nva0070/flicks-backend/internal/mediatypes"
	"github.com/nva0070/flicks-backend/internal/metrics"
	"github.com/nva0070/flicks-backend/internal/storage"
	"github.com/nva0070/flicks-backend/internal/transcoder"
	"github.com/nva0070/flicks-backend/internal/workspace"
)

// Size ceilings per kind. The video ceiling is deliberately the single
// enforced figure; there is exactly one limit per kind.
const (
	MaxImageBytes = 5 << 20   // 5MB
	MaxVideoBytes = 100 << 20 // 100MB
)

// Image normalization profiles.
const (
	ProfilePhoto  = "photo"  // centered square crop
	ProfileBanner = "banner" // fit-and-crop to 1280×720
)

// Validation failure reasons, surfaced machine-readable to clients.
const (
	ReasonBadKind      = "bad_kind"
	ReasonBadExtension = "bad_extension"
	ReasonTooLarge     = "too_large"
	ReasonBadProfile   = "bad_profile"
	ReasonEmptyUpload  = "empty_upload"
)

// ValidationError rejects an upload before any side effect occurs.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

// IngestRequest describes one upload.
type IngestRequest struct {
	OwnerType         string
	OwnerID           int64
	Kind              mediatypes.Kind
	FileName          string
	Data              []byte
	Profile           string // image only; defaults to ProfilePhoto
	MarkPrimary       bool
	SkipNormalization bool
	AltText           string
	DisplayOrder      int
}

// Store is the asset persistence the pipeline needs.
type Store interface {
	EntityExists(ctx context.Context, entityType string, id int64) (bool, error)
	CreateAsset(ctx context.Context, a *database.MediaAsset, markPrimary bool) error
	FinishAsset(ctx context.Context, id int64, rawRef, canonicalRef string, durationSeconds *int, status string, degraded bool, degradeReason string) error
	GetAsset(ctx context.Context, id int64) (*database.MediaAsset, error)
}

// Pipeline runs ingests, synchronously or through its worker pool.
type Pipeline struct {
	store      Store
	backend    storage.Backend
	workspaces *workspace.Manager
	transcoder *transcoder.Transcoder

	queue   chan job
	backoff Backpressure
	done    chan struct{}
	wg      sync.WaitGroup
}

// Backpressure gates intake under memory pressure. Satisfied by
// *memory.Monitor; nil means no gating.
type Backpressure interface {
	WaitIfPaused() bool
}

// New creates a Pipeline. Call StartWorkers before using the async path.
func New(store Store, backend storage.Backend, workspaces *workspace.Manager, tc *transcoder.Transcoder, queueSize int, backoff Backpressure) *Pipeline {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pipeline{
		store:      store,
		backend:    backend,
		workspaces: workspaces,
		transcoder: tc,
		queue:      make(chan job, queueSize),
		backoff:    backoff,
		done:       make(chan struct{}),
	}
}

// Validate checks the request against the per-kind allow-lists and size
// ceilings. It has no side effects.
func (p *Pipeline) Validate(req *IngestRequest) error {
	if !req.Kind.Valid() {
		return &ValidationError{Reason: ReasonBadKind, Message: fmt.Sprintf("unknown media kind %q", req.Kind)}
	}

	if len(req.Data) == 0 {
		return &ValidationError{Reason: ReasonEmptyUpload, Message: "upload is empty"}
	}

	ext := mediatypes.NormalizeExt(req.FileName)
	if !mediatypes.Allowed(req.Kind, ext) {
		return &ValidationError{
			Reason:  ReasonBadExtension,
			Message: fmt.Sprintf("extension %q is not allowed for kind %s", ext, req.Kind),
		}
	}

	limit := MaxImageBytes
	if req.Kind == mediatypes.KindVideo {
		limit = MaxVideoBytes
	}
	if len(req.Data) > limit {
		return &ValidationError{
			Reason:  ReasonTooLarge,
			Message: fmt.Sprintf("upload is %d bytes, limit for %s is %d", len(req.Data), req.Kind, limit),
		}
	}

	if req.Kind == mediatypes.KindImage {
		switch req.Profile {
		case "", ProfilePhoto, ProfileBanner:
		default:
			return &ValidationError{Reason: ReasonBadProfile, Message: fmt.Sprintf("unknown image profile %q", req.Profile)}
		}

		// Undecodable bytes pass here; normalization degrades them to
		// the original upload instead.
		if px, ok := media.PixelCount(req.Data); ok && px > media.MaxImagePixels {
			return &ValidationError{
				Reason:  ReasonTooLarge,
				Message: fmt.Sprintf("image is %d pixels, limit is %d", px, media.MaxImagePixels),
			}
		}
	}

	return nil
}

// Ingest validates and processes one upload synchronously, returning the
// finished asset. Normalization faults degrade to the original bytes
// and never surface as errors; only validation, unknown owners, and
// storage/persistence failures do.
func (p *Pipeline) Ingest(ctx context.Context, req *IngestRequest) (*database.MediaAsset, error) {
	asset, err := p.Accept(ctx, req)
	if err != nil {
		return nil, err
	}

	p.Process(ctx, asset.ID, req)
	return p.store.GetAsset(ctx, asset.ID)
}

// Accept validates the request and creates the pending asset record.
// The upload's bytes are not yet touched; Process finishes the job.
func (p *Pipeline) Accept(ctx context.Context, req *IngestRequest) (*database.MediaAsset, error) {
	if err := p.Validate(req); err != nil {
		metrics.IngestsTotal.WithLabelValues(string(req.Kind), "rejected").Inc()
		return nil, err
	}

	exists, err := p.store.EntityExists(ctx, req.OwnerType, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("looking up owner %s/%d: %w", req.OwnerType, req.OwnerID, err)
	}
	if !exists {
		return nil, fmt.Errorf("owner %s/%d: %w", req.OwnerType, req.OwnerID, database.ErrNotFound)
	}

	asset := &database.MediaAsset{
		OwnerType:    req.OwnerType,
		OwnerID:      req.OwnerID,
		Kind:         string(req.Kind),
		FileName:     req.FileName,
		Status:       database.AssetStatusPending,
		DisplayOrder: req.DisplayOrder,
		AltText:      req.AltText,
	}
	if err := p.store.CreateAsset(ctx, asset, req.MarkPrimary); err != nil {
		return nil, fmt.Errorf("creating asset record: %w", err)
	}

	metrics.IngestBytesTotal.WithLabelValues(string(req.Kind)).Add(float64(len(req.Data)))
	return asset, nil
}

// Process normalizes and stores the upload's bytes for an accepted
// asset, then records the outcome. Faults inside normalization degrade;
// storage and persistence failures mark the asset failed.
func (p *Pipeline) Process(ctx context.Context, assetID int64, req *IngestRequest) {
	start := time.Now()
	kind := string(req.Kind)

	rawRef, err := p.backend.Store(ctx, req.Data, "raw_"+req.FileName)
	if err != nil {
		logging.Error("Storing raw upload for asset %d failed: %v", assetID, err)
		p.finish(ctx, assetID, "", "", nil, database.AssetStatusFailed, true, fmt.Sprintf("raw store failed: %v", err))
		metrics.IngestsTotal.WithLabelValues(kind, "failed").Inc()
		return
	}

	var result media.Result
	var duration *int

	switch {
	case req.SkipNormalization:
		result = media.Result{Bytes: req.Data}
	case req.Kind == mediatypes.KindImage:
		result = p.normalizeImage(req)
	default:
		result, duration = p.normalizeVideo(ctx, req)
	}

	// A degraded result carries the original bytes, which are already
	// stored: the canonical ref aliases the raw object.
	canonicalRef := rawRef
	if !result.Degraded && !req.SkipNormalization {
		canonicalRef, err = p.backend.Store(ctx, result.Bytes, "canonical_"+canonicalName(req))
		if err != nil {
			logging.Error("Storing canonical bytes for asset %d failed: %v", assetID, err)
			canonicalRef = rawRef
			result.Degraded = true
			result.Reason = fmt.Sprintf("canonical store failed: %v", err)
		}
	}

	if result.Degraded {
		logging.Warn("Asset %d degraded to original bytes: %s", assetID, result.Reason)
	}

	p.finish(ctx, assetID, string(rawRef), string(canonicalRef), duration, database.AssetStatusReady, result.Degraded, result.Reason)

	status := "ok"
	if result.Degraded {
		status = "degraded"
	}
	metrics.IngestsTotal.WithLabelValues(kind, status).Inc()
	metrics.IngestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) finish(ctx context.Context, assetID int64, rawRef, canonicalRef string, duration *int, status string, degraded bool, reason string) {
	if err := p.store.FinishAsset(ctx, assetID, rawRef, canonicalRef, duration, status, degraded, reason); err != nil {
		logging.Error("Recording ingest outcome for asset %d failed: %v", assetID, err)
	}
}

// canonicalName picks the stored name for normalized bytes. Transcoded
// video is always mp4, whatever container the upload arrived in.
func canonicalName(req *IngestRequest) string {
	if req.Kind == mediatypes.KindVideo {
		name := req.FileName
		if ext := mediatypes.NormalizeExt(name); ext != "" {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		return name + ".mp4"
	}
	return req.FileName
}

func (p *Pipeline) normalizeImage(req *IngestRequest) media.Result {
	ext := mediatypes.NormalizeExt(req.FileName)
	if req.Profile == ProfileBanner {
		return media.NormalizeBanner(req.Data, ext)
	}
	return media.SquareCrop(req.Data, ext)
}

// normalizeVideo stages the upload, probes its duration, and transcodes
// it to the delivery profile. Probe failure leaves the duration unknown;
// transcode failure degrades to the original bytes. The workspace is
// released on every path.
func (p *Pipeline) normalizeVideo(ctx context.Context, req *IngestRequest) (media.Result, *int) {
	handle, err := p.workspaces.Acquire()
	if err != nil {
		logging.Error("Acquiring workspace failed: %v", err)
		return media.Result{Bytes: req.Data, Degraded: true, Reason: fmt.Sprintf("workspace acquire failed: %v", err)}, nil
	}
	defer p.workspaces.Release(handle)

	inputPath, err := handle.Write(req.FileName, req.Data)
	if err != nil {
		logging.Error("Staging upload failed: %v", err)
		return media.Result{Bytes: req.Data, Degraded: true, Reason: fmt.Sprintf("staging failed: %v", err)}, nil
	}

	duration := p.transcoder.Probe(ctx, inputPath)

	outputPath := handle.Path("normalized.mp4")
	if err := p.transcoder.Transcode(ctx, inputPath, outputPath); err != nil {
		return media.Result{Bytes: req.Data, Degraded: true, Reason: fmt.Sprintf("transcode failed: %v", err)}, duration
	}

	normalized, err := handle.Read(outputPath)
	if err != nil {
		logging.Error("Reading transcoded output failed: %v", err)
		return media.Result{Bytes: req.Data, Degraded: true, Reason: fmt.Sprintf("reading transcode output failed: %v", err)}, duration
	}

	return media.Result{Bytes: normalized}, duration
}
