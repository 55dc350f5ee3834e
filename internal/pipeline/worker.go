package pipeline

import (
	"context"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

type job struct {
	assetID int64
	req     *IngestRequest
}

// StartWorkers launches n ingest workers draining the queue. Jobs run
// under context.Background: an ingest outlives the upload request that
// enqueued it.
func (p *Pipeline) StartWorkers(n int) {
	if n < 1 {
		n = 1
	}
	logging.Info("Starting %d ingest workers (queue size %d)", n, cap(p.queue))

	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// StopWorkers drains the queue and waits for in-flight jobs.
func (p *Pipeline) StopWorkers() {
	close(p.done)
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.queue:
			metrics.IngestQueueDepth.Set(float64(len(p.queue)))
			p.run(j)
		case <-p.done:
			// Drain whatever was accepted before shutdown; pending
			// assets must still reach a terminal state.
			for {
				select {
				case j := <-p.queue:
					p.run(j)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) run(j job) {
	if p.backoff != nil && !p.backoff.WaitIfPaused() {
		logging.Warn("Ingest worker stopping with asset %d unprocessed", j.assetID)
		p.finish(context.Background(), j.assetID, "", "", nil, database.AssetStatusFailed, true, "worker shutdown")
		return
	}

	metrics.IngestWorkersBusy.Inc()
	defer metrics.IngestWorkersBusy.Dec()

	p.Process(context.Background(), j.assetID, j.req)
}

// Enqueue validates the upload, creates its pending asset, and hands the
// processing to the worker pool. The returned asset is pending; clients
// poll it until ready. A full queue falls back to processing inline
// rather than rejecting an accepted upload.
func (p *Pipeline) Enqueue(ctx context.Context, req *IngestRequest) (*database.MediaAsset, error) {
	asset, err := p.Accept(ctx, req)
	if err != nil {
		return nil, err
	}

	select {
	case p.queue <- job{assetID: asset.ID, req: req}:
		metrics.IngestQueueDepth.Set(float64(len(p.queue)))
	default:
		logging.Warn("Ingest queue full, processing asset %d inline", asset.ID)
		p.Process(ctx, asset.ID, req)
	}

	return p.store.GetAsset(ctx, asset.ID)
}
