package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Phone       *string    `json:"phone,omitempty"`
	Campus      *string    `json:"campus,omitempty"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	Rating      float64    `json:"rating"`
	RatingCount int        `json:"rating_count"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PublicProfileDTO is what other students see about a user.
type PublicProfileDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Campus      *string   `json:"campus,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Campus       *string
}

// UpdateProfileInput carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileInput struct {
	Name      *string
	Phone     *string
	Campus    *string
	AvatarURL *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Campus:      u.Campus,
		AvatarURL:   u.AvatarURL,
		Rating:      u.Rating,
		RatingCount: u.RatingCount,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// PublicFromModel strips contact details from the user.
func PublicFromModel(u *models.User) *PublicProfileDTO {
	if u == nil {
		return nil
	}
	return &PublicProfileDTO{
		ID:          u.ID,
		Name:        u.Name,
		Campus:      u.Campus,
		AvatarURL:   u.AvatarURL,
		Rating:      u.Rating,
		RatingCount: u.RatingCount,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Phone:        c.Phone,
		Campus:       c.Campus,
		IsActive:     true,
	}
}
