package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
)

const (
	defaultAuditRetention = 180 * 24 * time.Hour
	idempotencyRetention  = 7 * 24 * time.Hour
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// KeyPruner expires claimed idempotency keys.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditPruneJob deletes audit entries older than the retention window and,
// when Keys is set, idempotency keys older than a week.
type AuditPruneJob struct {
	DB      execer
	Keys    KeyPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditPruneJob initialises the prune handler. db is usually a *pgxpool.Pool.
func NewAuditPruneJob(db execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPruneJob {
	return &AuditPruneJob{
		DB:      db,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAuditPrune tasks.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.DB == nil {
		return nil
	}
	var payload AuditPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("audit prune: bad payload: %w", asynq.SkipRetry)
		}
	}
	if payload.Retention <= 0 {
		payload.Retention = defaultAuditRetention
	}

	tracker := j.metrics().Track(TaskAuditPrune)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.now().Add(-payload.Retention)
	tag, err := j.DB.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		j.logger().Error("prune audit_logs", slog.Any("error", err))
		return err
	}
	j.logger().Info("pruned audit_logs", slog.Int64("rows", tag.RowsAffected()), slog.Time("cutoff", cutoff))

	if j.Keys != nil {
		n, err := j.Keys.Cleanup(ctx, idempotencyRetention)
		if err != nil {
			j.logger().Error("prune idempotency_keys", slog.Any("error", err))
			return err
		}
		j.logger().Info("pruned idempotency_keys", slog.Int64("rows", n))
	}
	return nil
}

func (j *AuditPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditPrune))
	}
	return slog.Default().With(slog.String("job", TaskAuditPrune))
}

func (j *AuditPruneJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditPruneJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
