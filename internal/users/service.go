package users

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

const (
	maxNameLength   = 80
	maxCampusLength = 120
	maxPhoneLength  = 32
)

// Service exposes profile reads and edits.
type Service interface {
	Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateMe(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error)
	Public(ctx context.Context, userID uuid.UUID) (*PublicProfileDTO, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService wires the profile service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(user), nil
}

func (s *service) UpdateMe(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error) {
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("name must be 1-%d characters", maxNameLength))
		}
		fields["name"] = name
	}
	if input.Phone != nil {
		value, err := optionalText(*input.Phone, maxPhoneLength, "phone")
		if err != nil {
			return nil, err
		}
		fields["phone"] = value
	}
	if input.Campus != nil {
		value, err := optionalText(*input.Campus, maxCampusLength, "campus")
		if err != nil {
			return nil, err
		}
		fields["campus"] = value
	}
	if input.AvatarURL != nil {
		value := strings.TrimSpace(*input.AvatarURL)
		if value == "" {
			fields["avatar_url"] = nil
		} else {
			parsed, err := url.Parse(value)
			if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "avatar_url must be an http(s) url")
			}
			fields["avatar_url"] = value
		}
	}
	if len(fields) > 0 {
		fields["updated_at"] = s.now()
		if err := s.repo.UpdateProfile(ctx, userID, fields); err != nil {
			return nil, mapLoadError(err)
		}
	}
	return s.Me(ctx, userID)
}

func (s *service) Public(ctx context.Context, userID uuid.UUID) (*PublicProfileDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return PublicFromModel(user), nil
}

func optionalText(raw string, max int, field string) (any, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if len(value) > max {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return value, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}
