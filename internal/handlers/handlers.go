package handlers

import (
	"time"

	"github.com/nva0070/flicks-backend/internal/analytics"
	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/pipeline"
	"github.com/nva0070/flicks-backend/internal/sessions"
	"github.com/nva0070/flicks-backend/internal/storage"
)

type Handlers struct {
	db        *database.Database
	pipeline  *pipeline.Pipeline
	tracker   *sessions.Tracker
	analytics *analytics.Aggregator
	backend   storage.Backend
	startTime time.Time
}

func New(db *database.Database, pl *pipeline.Pipeline, tracker *sessions.Tracker, agg *analytics.Aggregator, backend storage.Backend) *Handlers {
	return &Handlers{
		db:        db,
		pipeline:  pl,
		tracker:   tracker,
		analytics: agg,
		backend:   backend,
		startTime: time.Now(),
	}
}
