package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMapStore() *mapStore {
	return &mapStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *mapStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *mapStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

func (s *mapStore) IdempotencyKey(scope, id string) string {
	return "cm:idempotency:" + scope + ":" + id
}

func TestNewLedgerValidates(t *testing.T) {
	_, err := NewLedger(nil, "relay", time.Hour)
	require.Error(t, err)
	_, err = NewLedger(newMapStore(), "", time.Hour)
	require.Error(t, err)
	_, err = NewLedger(newMapStore(), "relay", -time.Second)
	require.Error(t, err)
}

func TestLedgerClaimIsFirstWriterWins(t *testing.T) {
	store := newMapStore()
	ledger, err := NewLedger(store, "user-notifications", 48*time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	first, err := ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	require.True(t, first)

	again, err := ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	require.False(t, again)

	key := "cm:idempotency:evt:user-notifications:" + id.String()
	require.Contains(t, store.values, key)
	require.Equal(t, 48*time.Hour, store.ttls[key])
}

func TestLedgerSeenDoesNotRecord(t *testing.T) {
	ledger, err := NewLedger(newMapStore(), "relay", time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	seen, err := ledger.Seen(context.Background(), id)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, ledger.Record(context.Background(), id))
	require.NoError(t, ledger.Record(context.Background(), id))

	seen, err = ledger.Seen(context.Background(), id)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestLedgerReleaseAllowsReclaim(t *testing.T) {
	ledger, err := NewLedger(newMapStore(), "analytics", time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	_, err = ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, ledger.Release(context.Background(), id))

	first, err := ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	require.True(t, first)
}

func TestLedgerScopesByConsumer(t *testing.T) {
	store := newMapStore()
	relay, _ := NewLedger(store, "relay", time.Hour)
	notify, _ := NewLedger(store, "user-notifications", time.Hour)
	id := uuid.New()

	_, err := relay.Claim(context.Background(), id)
	require.NoError(t, err)
	first, err := notify.Claim(context.Background(), id)
	require.NoError(t, err)
	require.True(t, first)
}

func TestLedgerRejectsNilEventAndWrapsStoreErrors(t *testing.T) {
	store := newMapStore()
	ledger, _ := NewLedger(store, "relay", time.Hour)

	_, err := ledger.Claim(context.Background(), uuid.Nil)
	require.Error(t, err)

	store.err = errors.New("redis down")
	_, err = ledger.Seen(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.err)
}
