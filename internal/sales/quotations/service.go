package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// RemoteAPI is the quotation service the desk edits against.
type RemoteAPI interface {
	API
	GetQuotation(ctx context.Context, quotationID string) (QuotationDetail, error)
	SearchSKUs(ctx context.Context, term string, limit int) ([]SKU, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RequestGuard claims idempotency keys for commits.
type RequestGuard interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

// FinalizeNotifier is told about every successful finalize.
type FinalizeNotifier interface {
	NotifyFinalized(ctx context.Context, event FinalizedEvent) error
}

// FinalizedEvent describes a finalize that went through.
type FinalizedEvent struct {
	QuotationID string `json:"quotation_id"`
	ActorID     string `json:"actor_id"`
	Version     int64  `json:"version"`
	Selections  int    `json:"selections"`
}

const defaultSKULimit = 20

// Service owns the editing sessions. Every read-modify-write of a session
// runs under a per-quotation mutex and, when a session locker is set, under
// a lock shared with the other instances.
type Service struct {
	api          RemoteAPI
	repo         Repository
	orchestrator *Orchestrator
	audit        AuditRecorder
	notifier     FinalizeNotifier
	guard        RequestGuard
	sessionLock  CommitLocker
	logger       *slog.Logger

	loads   singleflight.Group
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewService(api RemoteAPI, repo Repository, orchestrator *Orchestrator, audit AuditRecorder, notifier FinalizeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:          api,
		repo:         repo,
		orchestrator: orchestrator,
		audit:        audit,
		notifier:     notifier,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
	}
}

// UseRequestGuard enables Idempotency-Key handling for finalize.
func (s *Service) UseRequestGuard(guard RequestGuard) {
	s.guard = guard
}

// UseSessionLocker serialises session writes across instances.
func (s *Service) UseSessionLocker(locker CommitLocker) {
	s.sessionLock = locker
}

// Load opens an editing session. An existing session is reused unless
// reload is set, in which case local changes are discarded and the
// quotation is fetched again.
func (s *Service) Load(ctx context.Context, quotationID string, reload bool) (*Session, error) {
	if !reload {
		sess, err := s.repo.Get(ctx, quotationID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	key := quotationID
	if reload {
		key += ":reload"
	}
	resultChan := s.loads.DoChan(key, func() (interface{}, error) {
		return s.fetch(ctx, quotationID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session).clone(), nil
	}
}

func (s *Service) fetch(ctx context.Context, quotationID string) (*Session, error) {
	detail, err := s.api.GetQuotation(ctx, quotationID)
	if err != nil {
		if errors.Is(err, ErrQuotationNotFound) {
			return nil, err
		}
		return nil, &CommitError{Op: "get quotation", Err: err}
	}
	if detail.ID == "" {
		detail.ID = FlexString(quotationID)
	}
	q, itemErrs := FromDetail(detail)
	for _, itemErr := range itemErrs {
		s.logger.Warn("line item degraded", slog.String("quotation_id", quotationID), slog.Any("error", itemErr))
	}
	sess := NewSession(q)

	unlock, err := s.lockSession(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("quotation session loaded",
		slog.String("quotation_id", quotationID),
		slog.Int("items", len(sess.Quotation.Items)),
		slog.String("status", string(sess.Quotation.Status)),
	)
	return sess, nil
}

// Session returns the stored session.
func (s *Service) Session(ctx context.Context, quotationID string) (*Session, error) {
	return s.repo.Get(ctx, quotationID)
}

// View renders the stored session filtered by search.
func (s *Service) View(ctx context.Context, quotationID, search string) (SessionView, error) {
	sess, err := s.repo.Get(ctx, quotationID)
	if err != nil {
		return SessionView{}, err
	}
	return sess.View(search), nil
}

// Apply runs a user action against the session and stores the result.
func (s *Service) Apply(ctx context.Context, quotationID string, action Action) (*Session, error) {
	return s.withSession(ctx, quotationID, func(sess *Session) error {
		return sess.Apply(action)
	})
}

// Save commits the session as a draft.
func (s *Service) Save(ctx context.Context, quotationID string) (*Session, error) {
	return s.commit(ctx, quotationID, OpSave, s.orchestrator.Save)
}

// Preview saves the session once every row is matched or resolved.
func (s *Service) Preview(ctx context.Context, quotationID string) (*Session, error) {
	return s.commit(ctx, quotationID, OpPreview, s.orchestrator.Preview)
}

// Finalize saves the session and commits its pending selections.
func (s *Service) Finalize(ctx context.Context, quotationID string) (*Session, error) {
	var pending int
	sess, err := s.commit(ctx, quotationID, OpFinalize, func(ctx context.Context, sess *Session) error {
		pending = len(sess.Selections)
		return s.orchestrator.Finalize(ctx, sess)
	})
	if err != nil {
		return sess, err
	}
	if s.notifier != nil {
		event := FinalizedEvent{
			QuotationID: quotationID,
			ActorID:     shared.ActorID(ctx),
			Version:     sess.Version,
			Selections:  pending,
		}
		if err := s.notifier.NotifyFinalized(ctx, event); err != nil {
			s.logger.Warn("notify finalized", slog.String("quotation_id", quotationID), slog.Any("error", err))
		}
	}
	return sess, nil
}

// FinalizeOnce runs Finalize at most once per key. A failed finalize
// releases the key so the client can retry with it.
func (s *Service) FinalizeOnce(ctx context.Context, quotationID, key string) (*Session, error) {
	if key == "" || s.guard == nil {
		return s.Finalize(ctx, quotationID)
	}
	scope := "quotation.finalize:" + quotationID
	if err := s.guard.Claim(ctx, scope, key); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	sess, err := s.Finalize(ctx, quotationID)
	if err != nil {
		if relErr := s.guard.Release(ctx, scope, key); relErr != nil {
			s.logger.Warn("release idempotency key", slog.String("quotation_id", quotationID), slog.Any("error", relErr))
		}
	}
	return sess, err
}

// SearchSKUs looks up price list entries for manual resolution.
func (s *Service) SearchSKUs(ctx context.Context, req SKUSearchRequest) ([]SKU, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultSKULimit
	}
	skus, err := s.api.SearchSKUs(ctx, req.Query, limit)
	if err != nil {
		return nil, &CommitError{Op: "search skus", Err: err}
	}
	return skus, nil
}

// Discard drops the stored session of a quotation if it is still at version.
// A negative version drops it unconditionally.
func (s *Service) Discard(ctx context.Context, quotationID string, version int64) (bool, error) {
	unlock, err := s.lockSession(ctx, quotationID)
	if err != nil {
		return false, err
	}
	defer unlock()

	if version >= 0 {
		dropped, err := s.repo.DeleteIfVersion(ctx, quotationID, version)
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return dropped, err
	}
	if err := s.repo.Delete(ctx, quotationID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) commit(ctx context.Context, quotationID, op string, run func(context.Context, *Session) error) (*Session, error) {
	if s.orchestrator.InFlight(quotationID) {
		return nil, ErrOperationInFlight
	}
	var runErr error
	sess, err := s.withSession(ctx, quotationID, func(sess *Session) error {
		runErr = run(ctx, sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, op, sess, runErr)
	return sess, runErr
}

func (s *Service) withSession(ctx context.Context, quotationID string, fn func(*Session) error) (*Session, error) {
	unlock, err := s.lockSession(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.repo.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	read := sess.Version
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.repo.SaveIfVersion(ctx, sess, read); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) lockSession(ctx context.Context, quotationID string) (func(), error) {
	mu := s.lockFor(quotationID)
	mu.Lock()
	if s.sessionLock == nil {
		return mu.Unlock, nil
	}
	release, err := s.sessionLock.Acquire(ctx, quotationID)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release session lock", slog.String("quotation_id", quotationID), slog.Any("error", err))
		}
		mu.Unlock()
	}, nil
}

func (s *Service) lockFor(quotationID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[quotationID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[quotationID] = mu
	}
	return mu
}

func (s *Service) record(ctx context.Context, op string, sess *Session, opErr error) {
	if s.audit == nil || errors.Is(opErr, ErrOperationInFlight) {
		return
	}
	totals := sess.Totals()
	meta := map[string]any{
		"result":     "success",
		"version":    sess.Version,
		"items":      len(sess.Quotation.Items),
		"selections": len(sess.Selections),
		"total":      totals.Total,
	}
	if opErr != nil {
		meta["result"] = "failure"
		meta["error"] = opErr.Error()
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   fmt.Sprintf("quotation.%s", op),
		Entity:   "quotation",
		EntityID: sess.Quotation.ID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("quotation_id", sess.Quotation.ID), slog.String("op", op), slog.Any("error", err))
	}
}
