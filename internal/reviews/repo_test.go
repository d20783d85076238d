package reviews

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/db/sqlitetest"
)

func TestLockUserTakesRowLockOnPostgres(t *testing.T) {
	sqlDB, err := sqlitetest.Open(t).DB()
	require.NoError(t, err)
	pg, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	id := uuid.New()
	stmt := pg.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var user models.User
		return lockUser(tx, id).First(&user)
	})
	assert.Contains(t, stmt, "FOR UPDATE")
	assert.Contains(t, stmt, id.String())
}

func TestLockUserOnSQLite(t *testing.T) {
	h := newReviewHarness(t)
	seeded := h.seedUser(t)

	stmt := h.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var user models.User
		return lockUser(tx, seeded.ID).First(&user)
	})
	assert.NotContains(t, stmt, "FOR UPDATE")

	repo := NewRepository(h.db)
	user, err := repo.LockUser(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)

	_, err = repo.LockUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
