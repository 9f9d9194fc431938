package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
	"github.com/odyssey-erp/quotedesk/internal/sales/quotations"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotationFinalized follows up on a successful finalize.
	TaskQuotationFinalized = "quotation:finalized"
	// TaskAuditPrune removes audit entries past their retention.
	TaskAuditPrune = "audit:prune"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NewQuotationFinalizedTask constructs an Asynq task for a finalize event.
func NewQuotationFinalizedTask(event quotations.FinalizedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationFinalized, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// AuditPrunePayload carries the retention window of a prune run.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditPruneTask constructs an Asynq task pruning audit entries older than retention.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data, asynq.Queue(QueueDefault)), nil
}
