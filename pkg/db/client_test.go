package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func countModels(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&testModel{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "kept"}).Error
	}))
	require.EqualValues(t, 1, countModels(t, db))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&testModel{Name: "dropped"}).Error)
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.EqualValues(t, 1, countModels(t, db))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	require.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&testModel{Name: "half"}).Error)
			panic("mid transaction")
		})
	})
	require.EqualValues(t, 0, countModels(t, db))
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()))

	_, err = New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE UNIQUE INDEX idx_test_models_name ON test_models (name)").Error)
	require.NoError(t, db.Create(&testModel{Name: "dup"}).Error)

	err := db.Create(&testModel{Name: "dup"}).Error
	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(err, "test_models.name"))
	require.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestIsUniqueViolationFromPostgresDrivers(t *testing.T) {
	pgxErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	require.True(t, IsUniqueViolation(pgxErr, ""))
	require.True(t, IsUniqueViolation(pgxErr, "users_email_key"))
	require.False(t, IsUniqueViolation(pgxErr, "reviews_pair_key"))

	pqErr := &pq.Error{Code: "23505", Constraint: "cart_items_buyer_item_key"}
	require.True(t, IsUniqueViolation(pqErr, "cart_items_buyer_item_key"))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "40001"}, ""))
}

func TestGormLoggerReportsOnlySlowOrFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Level: "info", Output: &buf})
	gl := newGormLogger(logg, 100*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	gl.Trace(ctx, time.Now(), sql, nil)
	gl.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	require.Zero(t, buf.Len())

	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Contains(t, buf.String(), "slow sql statement")

	buf.Reset()
	gl.Trace(ctx, time.Now(), sql, errors.New("syntax error"))
	require.Contains(t, buf.String(), "sql statement failed")
	require.Contains(t, buf.String(), "syntax error")
}
