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

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Expirer persists the expired status for overdue open quotations.
type Expirer interface {
	ExpireOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// ExpireSweepJob keeps stored statuses in line with the derived expiry.
type ExpireSweepJob struct {
	Quotations Expirer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

func NewExpireSweepJob(quotations Expirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpireSweepJob {
	return &ExpireSweepJob{
		Quotations: quotations,
		Logger:     logger,
		Metrics:    metrics,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

func (j *ExpireSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotations == nil {
		return errors.New("expire sweep: handler not configured")
	}
	var payload ExpireSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}

	metrics := j.metrics()
	tracker := metrics.Track(TaskExpireSweep)
	logger := j.logger().With(slog.String("as_of", asOf.Format("2006-01-02")))

	count, err := j.Quotations.ExpireOverdue(ctx, asOf)
	if err != nil {
		logger.Error("expire overdue quotations", slog.Any("error", err))
		return tracker.End(err)
	}
	metrics.AddItems(TaskExpireSweep, count)
	logger.Info("expire sweep finished", slog.Int("expired", count))
	return tracker.End(nil)
}

func (j *ExpireSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpireSweep))
	}
	return slog.Default().With(slog.String("job", TaskExpireSweep))
}

func (j *ExpireSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpireSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
