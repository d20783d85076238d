package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

// Repository stores in-app notifications. Every read and write is scoped to
// the recipient.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type listQuery struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

func recipient(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Model(&models.Notification{}).Where("user_id = ?", userID)
	}
}

func unread(db *gorm.DB) *gorm.DB {
	return db.Where("read_at IS NULL")
}

// CreateMany inserts notifications. A (user, event) pair that already exists
// is skipped, so a redelivered event does not notify twice.
func (r *Repository) CreateMany(ctx context.Context, notes []models.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&notes).Error
}

// List pages newest first on (created_at, id).
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Notification, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Scopes(recipient(q.UserID))
	if q.UnreadOnly {
		query = query.Scopes(unread)
	}
	if c := q.Cursor; c != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Notification
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, q.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Scopes(recipient(userID), unread).Count(&n).Error
	return n, err
}

// MarkRead keeps the first read time of an already read notification. found
// is false when the id does not belong to userID.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID, now time.Time) (found bool, err error) {
	res := r.db.WithContext(ctx).Scopes(recipient(userID)).
		Where("id = ?", id).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", now))
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Scopes(recipient(userID), unread).UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore purges notifications read before cutoff. Unread ones are
// kept regardless of age.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
