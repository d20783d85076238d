package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

// SubmitInput is a rating with an optional comment.
type SubmitInput struct {
	Rating  int
	Comment string
}

// ReviewDTO is the public review payload.
type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	RevieweeID uuid.UUID `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmitResult returns the stored review and the reviewee's new aggregate.
type SubmitResult struct {
	Review      ReviewDTO `json:"review"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
}

// ListInput selects a page of reviews for a reviewee.
type ListInput struct {
	RevieweeID uuid.UUID
	Params     pagination.Params
}

// ListResult is one page of reviews.
type ListResult struct {
	Reviews []ReviewDTO `json:"reviews"`
	Cursor  string      `json:"cursor"`
}

func newReviewDTO(review models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         review.ID,
		ReviewerID: review.ReviewerID,
		RevieweeID: review.RevieweeID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt,
	}
}
