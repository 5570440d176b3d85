package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/tierquote/internal/jobs"
)

const defaultWarmPages = 5

// CacheWarmer preloads catalog pages into the read cache.
type CacheWarmer interface {
	Warm(ctx context.Context, pages int) (int, error)
}

// CatalogWarmJob refills the catalog cache after imports bump its version.
type CatalogWarmJob struct {
	Catalog CacheWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

func NewCatalogWarmJob(catalog CacheWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogWarmJob {
	return &CatalogWarmJob{Catalog: catalog, Logger: logger, Metrics: metrics, Timeout: 2 * time.Minute}
}

func (j *CatalogWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("catalog warm: handler not configured")
	}
	var payload CatalogWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Pages <= 0 {
		payload.Pages = defaultWarmPages
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCatalogWarm)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskCatalogWarm), slog.String("batch_id", payload.BatchID))

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	loaded, err := j.Catalog.Warm(ctx, payload.Pages)
	if err != nil {
		logger.Error("warm catalog cache", slog.Int("loaded", loaded), slog.Any("error", err))
		return tracker.End(err)
	}
	metrics.AddItems(TaskCatalogWarm, loaded)
	logger.Info("catalog cache warmed", slog.Int("products", loaded), slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}
