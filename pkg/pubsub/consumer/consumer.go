// Package consumer runs outbox-event subscribers: it decodes each delivery,
// claims its event id in a ledger, calls the handler and settles the message.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
)

// Event is one delivered outbox event.
type Event struct {
	MessageID     string
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Envelope      outbox.PayloadEnvelope
}

// Decode reads the envelope body and routing attributes of msg.
func Decode(msg *gcppubsub.Message) (Event, error) {
	env, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return Event{}, err
	}
	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes[outbox.AttrEventType]))
	if err != nil {
		return Event{}, fmt.Errorf("%s attribute: %w", outbox.AttrEventType, err)
	}
	ev := Event{
		MessageID:   msg.ID,
		EventID:     uuid.MustParse(env.EventID),
		EventType:   eventType,
		AggregateID: strings.TrimSpace(msg.Attributes[outbox.AttrAggregateID]),
		OccurredAt:  env.OccurredAt.UTC(),
		Envelope:    env,
	}
	if raw := strings.TrimSpace(msg.Attributes[outbox.AttrAggregateType]); raw != "" {
		if ev.AggregateType, err = enums.ParseOutboxAggregateType(raw); err != nil {
			return Event{}, fmt.Errorf("%s attribute: %w", outbox.AttrAggregateType, err)
		}
	}
	if ev.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, msg.Attributes[outbox.AttrCreatedAt]); err == nil {
			ev.OccurredAt = created.UTC()
		}
	}
	return ev, nil
}

type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (fn HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return fn(ctx, ev)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as one redelivery cannot fix. The message is acked and
// its event id stays claimed.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Receiver is the subset of *pubsub.Subscriber the consumer drives.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Ledger is satisfied by *idempotency.Ledger.
type Ledger interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

type Params struct {
	Name          string
	Handler       Handler
	Ledger        Ledger
	Subscriptions []Receiver
	Metrics       *metrics.ConsumerMetrics
	Logger        *logger.Logger
}

type Consumer struct {
	name    string
	handler Handler
	ledger  Ledger
	subs    []Receiver
	metrics *metrics.ConsumerMetrics
	logg    *logger.Logger
}

func New(p Params) (*Consumer, error) {
	switch {
	case p.Name == "":
		return nil, errors.New("consumer name is required")
	case p.Handler == nil:
		return nil, errors.New("handler is required")
	case p.Ledger == nil:
		return nil, errors.New("ledger is required")
	case len(p.Subscriptions) == 0:
		return nil, errors.New("at least one subscription is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	for i, sub := range p.Subscriptions {
		if sub == nil {
			return nil, fmt.Errorf("subscription %d is nil", i)
		}
	}
	return &Consumer{
		name:    p.Name,
		handler: p.Handler,
		ledger:  p.Ledger,
		subs:    p.Subscriptions,
		metrics: p.Metrics,
		logg:    p.Logger,
	}, nil
}

// Run receives on every subscription until ctx ends or one Receive fails.
func (c *Consumer) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, sub := range c.subs {
		group.Go(func() error {
			return sub.Receive(groupCtx, func(ctx context.Context, msg *gcppubsub.Message) {
				if c.Process(ctx, msg) {
					msg.Ack()
					return
				}
				msg.Nack()
			})
		})
	}
	return group.Wait()
}

// Process handles one delivery and reports whether it should be acked.
func (c *Consumer) Process(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": msg.ID,
		"event_type": msg.Attributes[outbox.AttrEventType],
	})

	ev, err := Decode(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping undecodable message")
		c.metrics.Observe(c.name, msg.Attributes[outbox.AttrEventType], metrics.ConsumerMalformed)
		return true
	}
	logCtx = c.logg.WithEventID(logCtx, ev.EventID.String())
	eventType := string(ev.EventType)

	first, err := c.ledger.Claim(logCtx, ev.EventID)
	if err != nil {
		c.logg.Error(logCtx, "event ledger unavailable", err)
		c.metrics.Observe(c.name, eventType, metrics.ConsumerRetry)
		return false
	}
	if !first {
		c.logg.Debug(logCtx, "event already handled")
		c.metrics.Observe(c.name, eventType, metrics.ConsumerDuplicate)
		return true
	}

	started := time.Now()
	err = c.handler.Handle(logCtx, ev)
	c.metrics.ObserveHandle(c.name, time.Since(started))

	switch {
	case err == nil:
		c.metrics.Observe(c.name, eventType, metrics.ConsumerHandled)
		return true
	case IsPermanent(err):
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "event rejected by handler")
		c.metrics.Observe(c.name, eventType, metrics.ConsumerRejected)
		return true
	default:
		c.logg.Error(logCtx, "event handler failed", err)
		if relErr := c.ledger.Release(context.WithoutCancel(logCtx), ev.EventID); relErr != nil {
			c.logg.Error(logCtx, "failed to release event claim", relErr)
		}
		c.metrics.Observe(c.name, eventType, metrics.ConsumerRetry)
		return false
	}
}
