package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campusmart/campusmart-backend/api/responses"
	"github.com/campusmart/campusmart-backend/pkg/config"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CampusMart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency in parallel. Any failure answers 503
// with the per-dependency results as details.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CampusMart-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			checks = make(map[string]string, len(deps))
			group  errgroup.Group
		)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			group.Go(func() error {
				err := dep.Ping(ctx)
				mu.Lock()
				defer mu.Unlock()
				checks[name] = "ok"
				if err != nil {
					checks[name] = "unavailable"
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.As(err).WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
