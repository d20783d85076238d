// Package relay moves committed outbox rows onto Pub/Sub.
//
// Each batch runs in one transaction: rows are claimed, published one at a
// time, and marked published, failed, or dead-lettered before commit. A row
// that Pub/Sub accepted but whose commit was lost is caught on the next pass
// by the relayed-event ledger, so subscribers see at most rare duplicates.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/registry"
	"github.com/campusmart/campusmart-backend/pkg/pubsub"
)

// ConsumerName scopes the relayed-event ledger.
const ConsumerName = "outbox-publisher"

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	defaultMaxBackoff     = 10 * time.Second
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Store interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailureTx(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetterTx(tx *gorm.DB, source uuid.UUID, entry models.OutboxDLQ, ceiling int) error
}

type Resolver interface {
	Resolve(row models.OutboxEvent) (*registry.Resolved, error)
}

// Publisher is satisfied by *pubsub.Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

// Ledger remembers event ids Pub/Sub already accepted.
type Ledger interface {
	Seen(ctx context.Context, eventID uuid.UUID) (bool, error)
	Record(ctx context.Context, eventID uuid.UUID) error
}

type Options struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
	MaxBackoff     time.Duration
}

// OptionsFromConfig maps the CAMPUSMART_OUTBOX_* settings.
func OptionsFromConfig(cfg config.OutboxConfig) Options {
	return Options{
		BatchSize:      cfg.BatchSize,
		MaxAttempts:    cfg.MaxAttempts,
		PollInterval:   cfg.PollInterval(),
		PublishTimeout: cfg.PublishTimeout,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	if o.MaxBackoff < o.PollInterval {
		o.MaxBackoff = max(defaultMaxBackoff, o.PollInterval)
	}
	return o
}

type Params struct {
	Tx        Transactor
	Store     Store
	Resolver  Resolver
	Publisher Publisher
	Ledger    Ledger
	Metrics   *metrics.OutboxMetrics
	Logger    *logger.Logger
	Options   Options
}

type Relay struct {
	tx        Transactor
	store     Store
	resolver  Resolver
	publisher Publisher
	ledger    Ledger
	metrics   *metrics.OutboxMetrics
	logg      *logger.Logger
	opts      Options

	now    func() time.Time
	jitter func(time.Duration) time.Duration
}

// New validates p. Ledger and Metrics are optional.
func New(p Params) (*Relay, error) {
	switch {
	case p.Tx == nil:
		return nil, errors.New("transactor is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case p.Publisher == nil:
		return nil, errors.New("publisher is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Relay{
		tx:        p.Tx,
		store:     p.Store,
		resolver:  p.Resolver,
		publisher: p.Publisher,
		ledger:    p.Ledger,
		metrics:   p.Metrics,
		logg:      p.Logger,
		opts:      p.Options.withDefaults(),
		now:       time.Now,
		jitter:    quarterJitter,
	}, nil
}

// Run drains the outbox until ctx is canceled. A full batch is followed
// immediately by the next one; an empty batch waits PollInterval; a failed
// batch backs off exponentially up to MaxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.opts.PollInterval
	for {
		n, err := r.Drain(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, r.opts.MaxBackoff)
		case n >= r.opts.BatchSize:
			wait = r.opts.PollInterval
			continue
		default:
			wait = r.opts.PollInterval
		}

		timer := time.NewTimer(r.jitter(wait))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Drain relays one batch and returns how many rows it claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.ClaimBatch(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			outcome, err := r.relay(ctx, tx, row)
			if err != nil {
				return err
			}
			r.metrics.Observe(string(row.EventType), outcome)
		}
		return nil
	})
	return claimed, err
}

// relay settles a single row. Only storage errors are returned; publish
// failures are recorded on the row.
func (r *Relay) relay(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (string, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    string(row.EventType),
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return metrics.OutboxDeadLettered, r.deadLetter(logCtx, tx, row, uuid.Nil, enums.OutboxDLQReasonNonRetryable, err)
	}
	eventID := uuid.MustParse(resolved.Envelope.EventID)
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"event_id": eventID.String(),
		"topic":    resolved.Route.Topic,
	})

	if r.relayedBefore(logCtx, eventID) {
		if err := r.store.MarkPublishedTx(tx, row.ID, r.now()); err != nil {
			return "", fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "outbox event was already relayed")
		return metrics.OutboxDuplicate, nil
	}

	msg := &gcppubsub.Message{
		Data:       row.Payload,
		Attributes: outbox.MessageAttributes(row, resolved.Envelope),
	}
	pubCtx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	serverID, err := r.publisher.Publish(pubCtx, resolved.Route.Topic, msg)
	cancel()

	if err != nil {
		if permanent(err) {
			return metrics.OutboxDeadLettered, r.deadLetter(logCtx, tx, row, eventID, enums.OutboxDLQReasonNonRetryable, err)
		}
		if row.AttemptCount+1 >= r.opts.MaxAttempts {
			cause := fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
			return metrics.OutboxDeadLettered, r.deadLetter(logCtx, tx, row, eventID, enums.OutboxDLQReasonMaxAttempts, cause)
		}
		r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed, will retry")
		if err := r.store.RecordFailureTx(tx, row.ID, err); err != nil {
			return "", fmt.Errorf("record failure %s: %w", row.ID, err)
		}
		return metrics.OutboxRetry, nil
	}

	if r.ledger != nil {
		if err := r.ledger.Record(ctx, eventID); err != nil {
			r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "could not record relayed event")
		}
	}
	publishedAt := r.now()
	if err := r.store.MarkPublishedTx(tx, row.ID, publishedAt); err != nil {
		return "", fmt.Errorf("mark published %s: %w", row.ID, err)
	}
	r.metrics.ObserveLag(publishedAt.Sub(row.CreatedAt))
	r.logg.Debug(r.logg.WithField(logCtx, "message_id", serverID), "outbox event published")
	return metrics.OutboxPublished, nil
}

// relayedBefore treats a ledger failure as not seen; a duplicate message is
// preferred over a lost one.
func (r *Relay) relayedBefore(ctx context.Context, eventID uuid.UUID) bool {
	if r.ledger == nil {
		return false
	}
	seen, err := r.ledger.Seen(ctx, eventID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "relayed-event lookup failed")
		return false
	}
	return seen
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, eventID uuid.UUID, reason enums.OutboxDLQErrorReason, cause error) error {
	if eventID == uuid.Nil {
		eventID = row.ID
	}
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": string(reason),
	}), "outbox event moved to dead letters")

	entry := row.DeadLetter(eventID, reason, cause)
	entry.FailedAt = r.now().UTC()
	if err := r.store.DeadLetterTx(tx, row.ID, entry, r.opts.MaxAttempts); err != nil {
		return fmt.Errorf("dead letter %s: %w", row.ID, err)
	}
	return nil
}

// permanent reports publish errors that retrying cannot fix.
func permanent(err error) bool {
	if errors.Is(err, pubsub.ErrNoPublisher) {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.PermissionDenied:
		return true
	}
	return false
}

func quarterJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(d/4+1)
}
