package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	dlqRetentionFactor  = 3
)

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	Outbox        publishedEventPurger
	DeadLetters   deadLetterPurger
	RetentionDays int
}

type publishedEventPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob purges relayed outbox rows after RetentionDays and
// dead letters after three times that window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		dlq:       params.DeadLetters,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    publishedEventPurger
	dlq       deadLetterPurger
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	window := time.Duration(j.retention) * 24 * time.Hour
	cutoff := now.Add(-window)
	dlqCutoff := now.Add(-window * dlqRetentionFactor)

	var errs error
	published, err := j.outbox.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge published events: %w", err))
	}
	var deadLetters int64
	if j.dlq != nil {
		deadLetters, err = j.dlq.DeleteFailedBefore(ctx, dlqCutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge dead letters: %w", err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"dlq_cutoff":          dlqCutoff,
		"retention_days":      j.retention,
		"published_deleted":   published,
		"dead_letter_deleted": deadLetters,
	})
	if errs != nil {
		return errs
	}
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
