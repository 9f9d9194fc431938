package quotations

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// API is the part of the quotation service the orchestrator writes to.
type API interface {
	UpdateQuotation(ctx context.Context, quotationID string, payload UpdatePayload) error
	FinalizeQuotation(ctx context.Context, payload FinalizePayload) error
}

// CommitLocker hands out a cross-process ticket for committing one
// quotation. Acquire returns ErrOperationInFlight when the ticket is taken.
type CommitLocker interface {
	Acquire(ctx context.Context, quotationID string) (release func(context.Context) error, err error)
}

// CommitRecorder observes commit outcomes.
type CommitRecorder interface {
	ObserveCommit(op, result string)
}

const (
	OpSave     = "save"
	OpPreview  = "preview"
	OpFinalize = "finalize"
)

// Orchestrator sequences save and finalize calls for editing sessions. At
// most one commit per quotation runs at a time; a second one is refused, not
// queued.
type Orchestrator struct {
	api      API
	locker   CommitLocker
	recorder CommitRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewOrchestrator(api API, locker CommitLocker, recorder CommitRecorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		api:      api,
		locker:   locker,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// Save persists the session as a draft. Rows awaiting a selection or a
// match do not block a plain save.
func (o *Orchestrator) Save(ctx context.Context, sess *Session) error {
	if sess.Quotation.ReadOnly() {
		return ErrReadOnly
	}
	err := o.commit(ctx, sess.Quotation.ID, func(ctx context.Context) error {
		return o.save(ctx, sess)
	})
	o.observe(OpSave, err)
	return err
}

// Preview saves the session before it is shown to the customer. Every row
// must be matched or resolved first.
func (o *Orchestrator) Preview(ctx context.Context, sess *Session) error {
	if err := sess.PreviewBlocker(); err != nil {
		return err
	}
	err := o.commit(ctx, sess.Quotation.ID, func(ctx context.Context) error {
		return o.save(ctx, sess)
	})
	o.observe(OpPreview, err)
	return err
}

// Finalize saves the session and then commits its pending selections. The
// finalize call is never issued unless the save in the same run succeeded.
// Selections are cleared only once finalize succeeds.
func (o *Orchestrator) Finalize(ctx context.Context, sess *Session) error {
	if err := sess.FinalizeBlocker(); err != nil {
		return err
	}
	err := o.commit(ctx, sess.Quotation.ID, func(ctx context.Context) error {
		payload, err := BuildFinalizePayload(sess)
		if err != nil {
			return err
		}
		if err := o.save(ctx, sess); err != nil {
			return err
		}
		if err := o.api.FinalizeQuotation(ctx, payload); err != nil {
			o.logger.Error("finalize quotation", slog.String("quotation_id", sess.Quotation.ID), slog.Any("error", err))
			return &CommitError{Op: "finalize quotation", Err: err}
		}
		sess.completeFinalize()
		return nil
	})
	o.observe(OpFinalize, err)
	return err
}

func (o *Orchestrator) save(ctx context.Context, sess *Session) error {
	if err := o.api.UpdateQuotation(ctx, sess.Quotation.ID, BuildUpdatePayload(sess)); err != nil {
		o.logger.Error("update quotation", slog.String("quotation_id", sess.Quotation.ID), slog.Any("error", err))
		return &CommitError{Op: "update quotation", Err: err}
	}
	sess.markSaved(o.now())
	return nil
}

func (o *Orchestrator) commit(ctx context.Context, quotationID string, fn func(context.Context) error) error {
	if !o.begin(quotationID) {
		return ErrOperationInFlight
	}
	defer o.end(quotationID)

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, quotationID)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("release commit lock", slog.String("quotation_id", quotationID), slog.Any("error", err))
			}
		}()
	}
	return fn(ctx)
}

// InFlight reports whether a commit for quotationID is running in this process.
func (o *Orchestrator) InFlight(quotationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inFlight[quotationID]
	return busy
}

func (o *Orchestrator) begin(quotationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[quotationID]; busy {
		return false
	}
	o.inFlight[quotationID] = struct{}{}
	return true
}

func (o *Orchestrator) end(quotationID string) {
	o.mu.Lock()
	delete(o.inFlight, quotationID)
	o.mu.Unlock()
}

func (o *Orchestrator) observe(op string, err error) {
	if o.recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	o.recorder.ObserveCommit(op, result)
}
