// Package idempotency remembers which event ids a consumer already handled.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/redis"
)

// Ledger is the processed-event set of one consumer. Entries live in Redis
// under IdempotencyKey("evt:<consumer>", eventID) and expire after ttl.
type Ledger struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

func NewLedger(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Ledger, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Ledger{store: store, consumer: consumer, ttl: ttl}, nil
}

// Consumer is the name entries are scoped under.
func (l *Ledger) Consumer() string {
	return l.consumer
}

// Claim records eventID and reports whether this call was the first to do so.
func (l *Ledger) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := l.key(eventID)
	if err != nil {
		return false, err
	}
	first, err := l.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return first, nil
}

// Seen reports whether eventID was recorded, without recording it.
func (l *Ledger) Seen(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := l.key(eventID)
	if err != nil {
		return false, err
	}
	value, err := l.store.Get(ctx, key)
	if redis.IsNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", eventID, err)
	}
	return value != "", nil
}

// Record marks eventID handled. Recording twice is harmless.
func (l *Ledger) Record(ctx context.Context, eventID uuid.UUID) error {
	_, err := l.Claim(ctx, eventID)
	return err
}

// Release forgets eventID so a redelivery is handled again.
func (l *Ledger) Release(ctx context.Context, eventID uuid.UUID) error {
	key, err := l.key(eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *Ledger) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:"+l.consumer, eventID.String()), nil
}
