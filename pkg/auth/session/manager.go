// Package session keeps refresh sessions in Redis, one record per access
// token id (the JWT jti).
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/redis"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errNoAccessID          = errors.New("access id is required")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// Issued is handed back to the client after login or refresh.
type Issued struct {
	AccessID     string
	RefreshToken string
	UserID       uuid.UUID
}

// record is what Redis holds. Only a digest of the refresh token is stored.
type record struct {
	UserID      uuid.UUID `json:"user_id"`
	RefreshHash string    `json:"refresh_hash"`
	IssuedAt    time.Time `json:"issued_at"`
}

type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// AccessSessionChecker is what the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

func NewManager(client *redis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(s store, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case ttl <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case ttl <= access:
		return nil, fmt.Errorf("refresh token ttl %s must exceed access token ttl %s", ttl, access)
	}
	return &Manager{store: s, ttl: ttl, now: time.Now}, nil
}

func (m *Manager) Start(ctx context.Context, userID uuid.UUID) (Issued, error) {
	if userID == uuid.Nil {
		return Issued{}, errors.New("user id is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return Issued{}, err
	}
	raw, err := json.Marshal(record{UserID: userID, RefreshHash: digest(token), IssuedAt: m.now().UTC()})
	if err != nil {
		return Issued{}, err
	}
	out := Issued{AccessID: NewAccessID(), RefreshToken: token, UserID: userID}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(out.AccessID), raw, m.ttl); err != nil {
		return Issued{}, fmt.Errorf("store session: %w", err)
	}
	return out, nil
}

// Rotate consumes the session of oldAccessID and opens a new one for the same
// user. The old record is removed before the token is compared, so a refresh
// token works at most once and a wrong token ends the session.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (Issued, error) {
	if strings.TrimSpace(oldAccessID) == "" || provided == "" {
		return Issued{}, ErrInvalidRefreshToken
	}
	raw, err := m.store.GetDel(ctx, m.store.AccessSessionKey(oldAccessID))
	if errors.Is(err, goredis.Nil) {
		return Issued{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Issued{}, fmt.Errorf("load session: %w", err)
	}

	var rec record
	if json.Unmarshal([]byte(raw), &rec) != nil || rec.UserID == uuid.Nil {
		return Issued{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.RefreshHash), []byte(digest(provided))) != 1 {
		return Issued{}, ErrInvalidRefreshToken
	}
	return m.Start(ctx, rec.UserID)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errNoAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errNoAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, err
	}
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
