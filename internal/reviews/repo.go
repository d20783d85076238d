package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

// Repository persists reviews and the denormalized rating on users.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a review repository to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LockUser loads the user inside the repository's transaction. On Postgres the
// row stays locked until commit, so two reviews of the same user recompute the
// aggregate one after the other and neither misses the other's rating.
func (r *Repository) LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := lockUser(r.db.WithContext(ctx), userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func lockUser(conn *gorm.DB, userID uuid.UUID) *gorm.DB {
	q := conn.Where("id = ?", userID)
	if db.IsPostgres(conn) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// DeleteByPair removes the reviewer's review of the reviewee, reporting whether one existed.
func (r *Repository) DeleteByPair(ctx context.Context, reviewerID, revieweeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("reviewer_id = ? AND reviewee_id = ?", reviewerID, revieweeID).
		Delete(&models.Review{})
	return res.RowsAffected > 0, res.Error
}

// Ratings re-reads every current rating of the reviewee.
func (r *Repository) Ratings(ctx context.Context, revieweeID uuid.UUID) ([]int, error) {
	var ratings []int
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Where("reviewee_id = ?", revieweeID).
		Pluck("rating", &ratings).Error
	return ratings, err
}

// SetUserRating stores the recomputed aggregate on the reviewee.
func (r *Repository) SetUserRating(ctx context.Context, userID uuid.UUID, rating float64, count int, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"rating":       rating,
			"rating_count": count,
			"updated_at":   now,
		}).Error
}

// ListForReviewee returns reviews newest first.
func (r *Repository) ListForReviewee(ctx context.Context, revieweeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, error) {
	q := r.db.WithContext(ctx).Where("reviewee_id = ?", revieweeID)
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Review
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
