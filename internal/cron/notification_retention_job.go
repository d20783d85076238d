package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const notificationRetentionDays = 90

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type NotificationRetentionJobParams struct {
	Logger        *logger.Logger
	Notifications readNotificationPurger
	RetentionDays int
}

// NewNotificationRetentionJob deletes notifications read more than RetentionDays ago.
// Unread rows are never purged.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = notificationRetentionDays
	}
	return &notificationRetentionJob{
		logg: params.Logger,
		repo: params.Notifications,
		days: days,
		now:  time.Now,
	}, nil
}

type notificationRetentionJob struct {
	logg *logger.Logger
	repo readNotificationPurger
	days int
	now  func() time.Time
}

func (j *notificationRetentionJob) Name() string { return "notification-retention" }

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	deleted, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge read notifications: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"deleted": deleted,
	}), "notification retention cleanup complete")
	return nil
}
