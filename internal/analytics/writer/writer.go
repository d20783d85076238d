// Package writer streams marketplace rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 250 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
)

// Inserter is satisfied by *bigquery.Client from pkg/bigquery.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type Options struct {
	Table       string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *logger.Logger
}

// Writer inserts each row as soon as it is handed over. The worker acks the
// Pub/Sub message only after Insert returns, so rows are never buffered.
type Writer struct {
	inserter Inserter
	opts     Options
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(inserter Inserter, opts Options) (*Writer, error) {
	if inserter == nil {
		return nil, errors.New("bigquery inserter required")
	}
	opts.Table = strings.TrimSpace(opts.Table)
	if opts.Table == "" {
		return nil, errors.New("marketplace table is required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = max(defaultMaxDelay, opts.BaseDelay)
	}
	return &Writer{inserter: inserter, opts: opts, sleep: sleepCtx}, nil
}

// Insert writes one row, retrying transient BigQuery failures with
// exponential backoff.
func (w *Writer) Insert(ctx context.Context, row types.MarketplaceEventRow) error {
	rows := []any{&row}
	delay := w.opts.BaseDelay
	for attempt := 1; ; attempt++ {
		err := w.inserter.InsertRows(ctx, w.opts.Table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.opts.MaxAttempts || !Transient(err) {
			return fmt.Errorf("insert %s into %s after %d attempt(s): %w", row.EventID, w.opts.Table, attempt, err)
		}
		if w.opts.Logger != nil {
			w.opts.Logger.Warn(w.opts.Logger.WithFields(ctx, map[string]any{
				"event_id": row.EventID,
				"attempt":  attempt,
				"backoff":  delay.String(),
				"error":    err.Error(),
			}), "bigquery insert failed, retrying")
		}
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, w.opts.MaxDelay)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transient reports whether every failure inside err is worth retrying.
// Row level errors are unpacked so one bad row makes the batch permanent.
func Transient(err error) bool {
	leaves := flatten(err)
	if len(leaves) == 0 {
		return false
	}
	for _, leaf := range leaves {
		if !transientLeaf(leaf) {
			return false
		}
	}
	return true
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	var out []error
	var multi cbigquery.MultiError
	var put cbigquery.PutMultiError
	var rowErr *cbigquery.RowInsertionError
	switch {
	case errors.As(err, &put):
		for i := range put {
			out = append(out, flatten(&put[i])...)
		}
	case errors.As(err, &rowErr):
		for _, inner := range rowErr.Errors {
			out = append(out, flatten(inner)...)
		}
	case errors.As(err, &multi):
		for _, inner := range multi {
			out = append(out, flatten(inner)...)
		}
	default:
		out = append(out, err)
	}
	return out
}

var retryableHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

func transientLeaf(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok {
		return retryableGRPC[st.Code()]
	}
	return false
}

// JSONColumn prepares v for a BigQuery JSON column. Raw JSON is stored as is
// and nil becomes NULL.
func JSONColumn(v any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := v.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("encode json column: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
