package database

import "time"

// Asset processing states. An asset is created pending by the async
// ingest path and transitions to ready (or failed) when the worker
// finishes.
const (
	AssetStatusPending = "pending"
	AssetStatusReady   = "ready"
	AssetStatusFailed  = "failed"
)

// MediaAsset is a normalized image or video artifact tied to a catalog
// entity. Within one (owner, kind) pair at most one asset is primary.
type MediaAsset struct {
	ID              int64      `json:"id"`
	OwnerType       string     `json:"ownerType"`
	OwnerID         int64      `json:"ownerId"`
	Kind            string     `json:"kind"`
	FileName        string     `json:"fileName"`
	RawRef          string     `json:"-"`
	CanonicalRef    string     `json:"-"`
	URL             string     `json:"url,omitempty"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
	IsPrimary       bool       `json:"isPrimary"`
	Status          string     `json:"status"`
	Degraded        bool       `json:"degraded"`
	DegradeReason   string     `json:"-"`
	DisplayOrder    int        `json:"displayOrder"`
	AltText         string     `json:"altText,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ViewSession is one continuous viewing interval of a video asset.
// EndTime nil means the session is open; it is set at most once.
type ViewSession struct {
	SessionID       string     `json:"sessionId"`
	AssetID         int64      `json:"assetId"`
	NominalDuration int        `json:"nominalDurationSeconds"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	WatchSeconds    int        `json:"watchSeconds"`
	PercentWatched  int        `json:"percentWatched"`
	Completed       bool       `json:"completed"`
	ClientIP        string     `json:"-"`
	UserAgent       string     `json:"-"`
}

// AssetAnalytics holds the durable engagement counters for one video
// asset. Mutated only through RecordView.
type AssetAnalytics struct {
	AssetID           int64 `json:"assetId"`
	ViewCount         int64 `json:"viewCount"`
	TotalWatchSeconds int64 `json:"totalWatchSeconds"`
}

// CatalogEntity is a thin owner record (product, shop, manufacturer)
// used only to validate asset ownership.
type CatalogEntity struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entityType"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}
