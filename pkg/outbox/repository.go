package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
)

const maxStoredErrorLen = 1024

var errTxRequired = errors.New("transaction required")

// Repository owns outbox_events and the outbox_dlq table rows parked from it.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// ClaimBatch returns the oldest unpublished rows still under maxAttempts.
// Postgres locks them with SKIP LOCKED so relays can run side by side.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if db.IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("published_at", at.UTC()).Error
}

// RecordFailureTx bumps the attempt counter and keeps the latest error.
func (r *Repository) RecordFailureTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    clip(cause),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeadLetterTx copies entry into outbox_dlq and parks the source row at the
// attempt ceiling so ClaimBatch never returns it again.
func (r *Repository) DeadLetterTx(tx *gorm.DB, source uuid.UUID, entry models.OutboxDLQ, ceiling int) error {
	if tx == nil {
		return errTxRequired
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		msg := clipString(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	updates := map[string]any{"attempt_count": ceiling}
	if entry.ErrorMessage != nil {
		updates["last_error"] = *entry.ErrorMessage
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", source).Updates(updates).Error
}

// DeletePublishedBefore removes rows published before cutoff and returns how many went.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// DeleteFailedBefore drops dead letters that failed before cutoff.
func (r *Repository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("failed_at < ?", cutoff).
		Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}

func clip(err error) string {
	if err == nil {
		return ""
	}
	return clipString(err.Error())
}

func clipString(msg string) string {
	if len(msg) > maxStoredErrorLen {
		return msg[:maxStoredErrorLen]
	}
	return msg
}
