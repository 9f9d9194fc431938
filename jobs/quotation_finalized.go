package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
	"github.com/odyssey-erp/quotedesk/internal/sales/quotations"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// SessionStore is the part of the session repository the job needs.
type SessionStore interface {
	DeleteIfVersion(ctx context.Context, quotationID string, version int64) (bool, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// QuotationFinalizedJob drops the cached editing session of a finalized
// quotation so the next load picks up the server state. A session edited
// after the finalize is kept.
type QuotationFinalizedJob struct {
	Sessions SessionStore
	Audit    AuditRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewQuotationFinalizedJob initialises the finalize follow-up handler.
func NewQuotationFinalizedJob(sessions SessionStore, audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationFinalizedJob {
	return &QuotationFinalizedJob{Sessions: sessions, Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskQuotationFinalized tasks.
func (j *QuotationFinalizedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sessions == nil {
		return errors.New("quotation finalized: handler not configured")
	}
	var event quotations.FinalizedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil || event.QuotationID == "" {
		return fmt.Errorf("quotation finalized: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskQuotationFinalized)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("quotation_id", event.QuotationID), slog.Int64("version", event.Version))

	outcome := "kept"
	dropped, err := j.Sessions.DeleteIfVersion(ctx, event.QuotationID, event.Version)
	switch {
	case errors.Is(err, quotations.ErrSessionNotFound):
		outcome = "missing"
	case err != nil:
		logger.Error("drop session", slog.Any("error", err))
		return err
	case dropped:
		outcome = "dropped"
	}
	j.metrics().SessionDiscarded(outcome)
	logger.Info("finalized quotation processed", slog.String("session", outcome), slog.Int("selections", event.Selections))

	if j.Audit != nil {
		auditErr := j.Audit.Record(ctx, shared.AuditLog{
			ActorID:  event.ActorID,
			Action:   "quotation.finalized",
			Entity:   "quotation",
			EntityID: event.QuotationID,
			Meta: map[string]any{
				"version":    event.Version,
				"selections": event.Selections,
				"session":    outcome,
			},
		})
		if auditErr != nil {
			logger.Warn("record audit", slog.Any("error", auditErr))
		}
	}
	return nil
}

func (j *QuotationFinalizedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskQuotationFinalized))
	}
	return slog.Default().With(slog.String("job", TaskQuotationFinalized))
}

func (j *QuotationFinalizedJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
