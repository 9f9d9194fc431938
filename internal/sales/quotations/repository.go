package quotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository stores editing sessions between requests.
type Repository interface {
	Get(ctx context.Context, quotationID string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	// SaveIfVersion writes sess only while the stored session is still at
	// expected. It returns ErrStaleSession otherwise.
	SaveIfVersion(ctx context.Context, sess *Session, expected int64) error
	Delete(ctx context.Context, quotationID string) error
	// DeleteIfVersion drops the session only while it is still at version.
	DeleteIfVersion(ctx context.Context, quotationID string, version int64) (bool, error)
}

type redisRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRepository returns a Redis backed session repository. Sessions expire
// ttl after their last write.
func NewRepository(client redis.UniversalClient, ttl time.Duration) Repository {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &redisRepository{client: client, ttl: ttl}
}

func (r *redisRepository) Get(ctx context.Context, quotationID string) (*Session, error) {
	raw, err := r.client.Get(ctx, shared.QuotationSessionKey(quotationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Selections == nil {
		sess.Selections = Selections{}
	}
	if sess.History == nil {
		sess.History = History{}
	}
	return &sess, nil
}

func (r *redisRepository) Save(ctx context.Context, sess *Session) error {
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, shared.QuotationSessionKey(sess.Quotation.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, quotationID string) error {
	if err := r.client.Del(ctx, shared.QuotationSessionKey(quotationID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *redisRepository) SaveIfVersion(ctx context.Context, sess *Session, expected int64) error {
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	key := shared.QuotationSessionKey(sess.Quotation.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return ErrStaleSession
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrStaleSession
	case errors.Is(err, ErrStaleSession), errors.Is(err, ErrSessionNotFound):
		return err
	default:
		return fmt.Errorf("save session: %w", err)
	}
}

func (r *redisRepository) DeleteIfVersion(ctx context.Context, quotationID string, version int64) (bool, error) {
	key := shared.QuotationSessionKey(quotationID)
	deleted := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		deleted = err == nil
		return err
	}, key)
	switch {
	case err == nil:
		return deleted, nil
	case errors.Is(err, redis.TxFailedErr):
		// written in between, so no longer at version
		return false, nil
	case errors.Is(err, ErrSessionNotFound):
		return false, err
	default:
		return false, fmt.Errorf("delete session: %w", err)
	}
}

func encodeSession(sess *Session) ([]byte, error) {
	if sess == nil || sess.Quotation.ID == "" {
		return nil, errors.New("session requires a quotation id")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return raw, nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return 0, fmt.Errorf("decode session: %w", err)
	}
	return head.Version, nil
}
