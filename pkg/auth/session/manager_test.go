package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/redis"
)

var testJWT = config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	m, err := NewManager(client, testJWT)
	require.NoError(t, err)
	return m, srv, client
}

func TestStartStoresDigestWithTTL(t *testing.T) {
	m, srv, client := newTestManager(t)
	user := uuid.New()

	issued, err := m.Start(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, user, issued.UserID)
	require.NotEmpty(t, issued.RefreshToken)

	key := client.AccessSessionKey(issued.AccessID)
	raw, err := srv.Get(key)
	require.NoError(t, err)
	require.NotContains(t, raw, issued.RefreshToken)
	require.Contains(t, raw, digest(issued.RefreshToken))
	require.Equal(t, time.Hour, srv.TTL(key))
}

func TestRotateIssuesNewSessionOnce(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	user := uuid.New()
	first, err := m.Start(ctx, user)
	require.NoError(t, err)

	next, err := m.Rotate(ctx, first.AccessID, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user, next.UserID)
	require.NotEqual(t, first.AccessID, next.AccessID)

	live, err := m.HasSession(ctx, first.AccessID)
	require.NoError(t, err)
	require.False(t, live)
	live, err = m.HasSession(ctx, next.AccessID)
	require.NoError(t, err)
	require.True(t, live)

	_, err = m.Rotate(ctx, first.AccessID, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateWithWrongTokenEndsSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	issued, err := m.Start(ctx, uuid.New())
	require.NoError(t, err)

	_, err = m.Rotate(ctx, issued.AccessID, "guess")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = m.Rotate(ctx, issued.AccessID, issued.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateRejectsCorruptRecords(t *testing.T) {
	m, srv, client := newTestManager(t)
	require.NoError(t, srv.Set(client.AccessSessionKey("jti-1"), "not json"))

	_, err := m.Rotate(context.Background(), "jti-1", "token")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeAndExpiry(t *testing.T) {
	m, srv, _ := newTestManager(t)
	ctx := context.Background()
	a, err := m.Start(ctx, uuid.New())
	require.NoError(t, err)
	b, err := m.Start(ctx, uuid.New())
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, a.AccessID))
	live, err := m.HasSession(ctx, a.AccessID)
	require.NoError(t, err)
	require.False(t, live)

	srv.FastForward(time.Hour + time.Second)
	live, err = m.HasSession(ctx, b.AccessID)
	require.NoError(t, err)
	require.False(t, live)

	require.Error(t, m.Revoke(ctx, " "))
	_, err = m.HasSession(ctx, "")
	require.Error(t, err)
}

func TestManagerSurfacesRedisErrors(t *testing.T) {
	m, srv, _ := newTestManager(t)
	srv.Close()

	_, err := m.HasSession(context.Background(), "jti")
	require.Error(t, err)
	_, err = m.Rotate(context.Background(), "jti", "token")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestNewManagerValidatesTTLs(t *testing.T) {
	_, err := NewManager(nil, testJWT)
	require.Error(t, err)

	srv := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	_, err = NewManager(client, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	require.Error(t, err)
	_, err = NewManager(client, config.JWTConfig{ExpirationMinutes: 60})
	require.Error(t, err)
}
