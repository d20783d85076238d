package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campusmart/campusmart-backend/pkg/logger"
)

// gormLogger routes GORM's trace output into the service logger. Only
// failed statements and statements slower than slow are reported.
type gormLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newGormLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &gormLogger{logg: logg, slow: slow}
}

func (g *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return g
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	g.logg.Debug(ctx, fmt.Sprintf(msg, args...))
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	g.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	g.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, context.Canceled)
	slow := g.slow > 0 && elapsed >= g.slow
	if !failed && !slow {
		return
	}
	sql, rows := fc()
	logCtx := g.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if failed {
		g.logg.Warn(g.logg.WithField(logCtx, "error", err.Error()), "sql statement failed")
		return
	}
	g.logg.Warn(logCtx, "slow sql statement")
}
