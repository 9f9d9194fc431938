package quotations

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewRepository(client, time.Hour)
	ctx := context.Background()

	_, err := repo.Get(ctx, "q-1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	s := newTestSession()
	applyAll(t, s, ResolveSelection{LineNo: 2, OptionIndex: 1}, DeleteItem{Key: "1"})
	require.NoError(t, repo.Save(ctx, s))
	assert.Equal(t, time.Hour, mr.TTL(shared.QuotationSessionKey("q-1")))

	got, err := repo.Get(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, s.Version, got.Version)
	assert.Equal(t, s.Selections, got.Selections)
	assert.Equal(t, s.Quotation.Items, got.Quotation.Items)
	assert.Len(t, got.Deleted, 1)
	assert.True(t, got.History.CanUndo("row-2"))

	require.NoError(t, repo.Delete(ctx, "q-1"))
	_, err = repo.Get(ctx, "q-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisRepositoryExpires(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewRepository(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newTestSession()))
	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(ctx, "q-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisRepositoryRejectsMissingID(t *testing.T) {
	_, client := newRedis(t)
	repo := NewRepository(client, 0)

	assert.Error(t, repo.Save(context.Background(), NewSession(Quotation{})))
}

func TestRedisRepositoryCorruptPayload(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewRepository(client, time.Hour)
	require.NoError(t, mr.Set(shared.QuotationSessionKey("q-1"), "{not json"))

	_, err := repo.Get(context.Background(), "q-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisCommitLocker(t *testing.T) {
	_, client := newRedis(t)
	locker := NewRedisCommitLocker(redislock.New(client), time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "q-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "q-1")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	other, err := locker.Acquire(ctx, "q-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	release, err = locker.Acquire(ctx, "q-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestOrchestratorWithRedisLockAcrossInstances(t *testing.T) {
	_, client := newRedis(t)
	lockClient := redislock.New(client)
	api := &stubAPI{}
	a := NewOrchestrator(api, NewRedisCommitLocker(lockClient, time.Minute), nil, nil)
	b := NewOrchestrator(api, NewRedisCommitLocker(lockClient, time.Minute), nil, nil)

	held, err := NewRedisCommitLocker(lockClient, time.Minute).Acquire(context.Background(), "q-1")
	require.NoError(t, err)

	assert.ErrorIs(t, a.Save(context.Background(), newTestSession()), ErrOperationInFlight)
	require.NoError(t, held(context.Background()))
	require.NoError(t, b.Save(context.Background(), newTestSession()))
	assert.Equal(t, []string{"update:q-1"}, api.callLog())
}

func TestRedisRepositorySaveIfVersion(t *testing.T) {
	_, client := newRedis(t)
	repo := NewRepository(client, time.Hour)
	ctx := context.Background()

	s := newTestSession()
	assert.ErrorIs(t, repo.SaveIfVersion(ctx, s, 0), ErrSessionNotFound)
	require.NoError(t, repo.Save(ctx, s))

	stale := s.clone()
	applyAll(t, s, SetTaxRate{Rate: 12})
	require.NoError(t, repo.SaveIfVersion(ctx, s, 0))

	applyAll(t, stale, SetTaxRate{Rate: 3})
	assert.ErrorIs(t, repo.SaveIfVersion(ctx, stale, 0), ErrStaleSession)

	got, err := repo.Get(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.Quotation.TaxRate)
	assert.Equal(t, int64(1), got.Version)
}

func TestRedisRepositoryDeleteIfVersion(t *testing.T) {
	_, client := newRedis(t)
	repo := NewRepository(client, time.Hour)
	ctx := context.Background()

	_, err := repo.DeleteIfVersion(ctx, "q-1", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s := newTestSession()
	applyAll(t, s, SetTaxRate{Rate: 12})
	require.NoError(t, repo.Save(ctx, s))

	dropped, err := repo.DeleteIfVersion(ctx, "q-1", 0)
	require.NoError(t, err)
	assert.False(t, dropped)
	_, err = repo.Get(ctx, "q-1")
	require.NoError(t, err)

	dropped, err = repo.DeleteIfVersion(ctx, "q-1", 1)
	require.NoError(t, err)
	assert.True(t, dropped)
	_, err = repo.Get(ctx, "q-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionLockerWaitsForRelease(t *testing.T) {
	_, client := newRedis(t)
	lockClient := redislock.New(client)
	ctx := context.Background()

	held, err := NewRedisSessionLocker(lockClient, time.Minute, 0).Acquire(ctx, "q-1")
	require.NoError(t, err)

	_, err = NewRedisSessionLocker(lockClient, time.Minute, 0).Acquire(ctx, "q-1")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = held(context.Background())
	}()
	release, err := NewRedisSessionLocker(lockClient, time.Minute, 2*time.Second).Acquire(ctx, "q-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))

	commit, err := NewRedisCommitLocker(lockClient, time.Minute).Acquire(ctx, "q-1")
	require.NoError(t, err)
	require.NoError(t, commit(ctx))
}
