package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is one user's rating of another. A reviewer holds at most one review per reviewee.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReviewerID uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null"`
	RevieweeID uuid.UUID `gorm:"column:reviewee_id;type:uuid;not null"`
	Rating     int       `gorm:"column:rating;not null"`
	Comment    string    `gorm:"column:comment;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
