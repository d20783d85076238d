package users

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmart/campusmart-backend/pkg/db/sqlitetest"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

func strPtr(v string) *string { return &v }

func newUserService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(sqlitetest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestProfileReadAndUpdate(t *testing.T) {
	svc, repo := newUserService(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "ada@campus.edu",
		PasswordHash: "hash",
		Name:         "Ada",
		Phone:        strPtr("+1 555 0100"),
	})
	require.NoError(t, err)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@campus.edu", me.Email)
	assert.True(t, me.IsActive)

	updated, err := svc.UpdateMe(ctx, user.ID, UpdateProfileInput{
		Name:      strPtr("  Ada L.  "),
		Campus:    strPtr("North Campus"),
		Phone:     strPtr(""),
		AvatarURL: strPtr("https://cdn.example.com/ada.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)
	require.NotNil(t, updated.Campus)
	assert.Equal(t, "North Campus", *updated.Campus)
	assert.Nil(t, updated.Phone, "blank phone clears the field")
	require.NotNil(t, updated.AvatarURL)

	public, err := svc.Public(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", public.Name)
	assert.Zero(t, public.RatingCount)
}

func TestUpdateProfileValidation(t *testing.T) {
	svc, repo := newUserService(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: "bob@campus.edu", PasswordHash: "hash", Name: "Bob"})
	require.NoError(t, err)

	cases := map[string]UpdateProfileInput{
		"blank name":  {Name: strPtr("   ")},
		"ftp avatar":  {AvatarURL: strPtr("ftp://example.com/a.png")},
		"long campus": {Campus: strPtr(strings.Repeat("c", maxCampusLength+1))},
		"avatar host": {AvatarURL: strPtr("https://")},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateMe(ctx, user.ID, input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestMissingUser(t *testing.T) {
	svc, _ := newUserService(t)
	_, err := svc.Me(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Public(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
