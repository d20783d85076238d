package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/internal/analytics"
	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

// AnalyticsSales reports the caller's sales, or purchases with as=buyer, over
// a preset or explicit window.
func AnalyticsSales(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, "analytics", func(w http.ResponseWriter, r *http.Request, caller uuid.UUID) error {
		perspective, err := parsePerspective(r.URL.Query().Get("as"))
		if err != nil {
			return err
		}
		start, end, err := resolveAnalyticsRange(r, timeNowUTC())
		if err != nil {
			return err
		}
		report, err := svc.Query(r.Context(), types.SalesQueryRequest{
			UserID:      caller,
			Perspective: perspective,
			Start:       start,
			End:         end,
		})
		return respond(w, report, err)
	})
}

func parsePerspective(raw string) (types.Perspective, error) {
	switch p := types.Perspective(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return types.PerspectiveSeller, nil
	case types.PerspectiveSeller, types.PerspectiveBuyer:
		return p, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "as must be seller or buyer")
	}
}

func resolveAnalyticsRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	query := r.URL.Query()
	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))

	if from != "" || to != "" {
		if from == "" || to == "" {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
		}
		start, _, err := parseRangeBound(from)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid from timestamp")
		}
		end, dateOnly, err := parseRangeBound(to)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid to timestamp")
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
		}
		return start, end, nil
	}

	duration, ok := presetDuration(strings.TrimSpace(query.Get("preset")))
	if !ok {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid preset")
	}
	return now.Add(-duration), now, nil
}

// parseRangeBound accepts RFC3339 or a bare YYYY-MM-DD date.
func parseRangeBound(value string) (time.Time, bool, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), false, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return day.UTC(), true, nil
}

func presetDuration(value string) (time.Duration, bool) {
	if value == "" {
		value = "30d"
	}
	switch strings.ToLower(value) {
	case "7d":
		return 7 * 24 * time.Hour, true
	case "30d":
		return 30 * 24 * time.Hour, true
	case "90d":
		return 90 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
