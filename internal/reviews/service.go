package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

const (
	minRating        = 1
	maxRating        = 5
	maxCommentLength = 2000
)

// Service manages reviews and keeps each user's aggregate rating current.
type Service interface {
	Submit(ctx context.Context, reviewerID, revieweeID uuid.UUID, input SubmitInput) (*SubmitResult, error)
	Delete(ctx context.Context, reviewerID, revieweeID uuid.UUID) error
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the review service.
func NewService(repo *Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: publisher,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Submit(ctx context.Context, reviewerID, revieweeID uuid.UUID, input SubmitInput) (*SubmitResult, error) {
	if reviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if revieweeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewee id required")
	}
	if reviewerID == revieweeID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "you cannot review yourself")
	}
	if input.Rating < minRating || input.Rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("comment must be at most %d characters", maxCommentLength))
	}

	now := s.now()
	review := models.Review{
		ID:         uuid.New(),
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     input.Rating,
		Comment:    comment,
		CreatedAt:  now,
	}
	result := &SubmitResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reviewee, err := lockReviewee(ctx, repo, revieweeID)
		if err != nil {
			return err
		}
		if !reviewee.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		replaced, err := repo.DeleteByPair(ctx, reviewerID, revieweeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace previous review")
		}
		if err := repo.Create(ctx, &review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store review")
		}
		rating, count, err := s.recompute(ctx, repo, revieweeID, now)
		if err != nil {
			return err
		}
		result.Rating = rating
		result.RatingCount = count

		event := outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Version:       1,
			OccurredAt:    now,
			Actor:         &outbox.ActorRef{UserID: reviewerID, Role: "reviewer"},
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:    review.ID,
				ReviewerID:  reviewerID,
				RevieweeID:  revieweeID,
				Rating:      review.Rating,
				NewAverage:  rating,
				RatingCount: count,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue review event")
		}
		if replaced && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"reviewer_id": reviewerID.String(), "reviewee_id": revieweeID.String()})
			s.logg.Info(logCtx, "review replaced")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Review = newReviewDTO(review)
	return result, nil
}

func (s *service) Delete(ctx context.Context, reviewerID, revieweeID uuid.UUID) error {
	if reviewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := lockReviewee(ctx, repo, revieweeID); err != nil {
			return err
		}
		removed, err := repo.DeleteByPair(ctx, reviewerID, revieweeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		_, _, err = s.recompute(ctx, repo, revieweeID, s.now())
		return err
	})
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.RevieweeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewee id required")
	}
	limit := pagination.NormalizeLimit(input.Params.Limit)
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForReviewee(ctx, input.RevieweeID, pagination.LimitWithBuffer(input.Params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	out := &ListResult{Reviews: make([]ReviewDTO, 0, len(rows)), Cursor: next}
	for _, row := range rows {
		out.Reviews = append(out.Reviews, newReviewDTO(row))
	}
	return out, nil
}

func lockReviewee(ctx context.Context, repo *Repository, revieweeID uuid.UUID) (*models.User, error) {
	user, err := repo.LockUser(ctx, revieweeID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock reviewee")
	}
	return user, nil
}

// recompute re-reads every rating of the reviewee rather than adjusting the stored mean.
func (s *service) recompute(ctx context.Context, repo *Repository, revieweeID uuid.UUID, now time.Time) (float64, int, error) {
	ratings, err := repo.Ratings(ctx, revieweeID)
	if err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ratings")
	}
	rating, count := Aggregate(ratings)
	if err := repo.SetUserRating(ctx, revieweeID, rating, count, now); err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user rating")
	}
	return rating, count, nil
}
