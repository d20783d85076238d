package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/campusmart/campusmart-backend/internal/analytics/types"
)

type fakeInserter struct {
	errs   []error
	tables []string
	rows   [][]any
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.tables = append(f.tables, table)
	f.rows = append(f.rows, rows)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestWriter(t *testing.T, errs ...error) (*Writer, *fakeInserter, *[]time.Duration) {
	t.Helper()
	fake := &fakeInserter{errs: errs}
	w, err := New(fake, Options{Table: "marketplace_events", BaseDelay: 10 * time.Millisecond, MaxDelay: 15 * time.Millisecond})
	require.NoError(t, err)
	var waits []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return w, fake, &waits
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Options{Table: "t"})
	require.Error(t, err)
	_, err = New(&fakeInserter{}, Options{Table: " "})
	require.Error(t, err)

	w, err := New(&fakeInserter{}, Options{Table: " t "})
	require.NoError(t, err)
	require.Equal(t, "t", w.opts.Table)
	require.Equal(t, defaultMaxAttempts, w.opts.MaxAttempts)
	require.Equal(t, defaultMaxDelay, w.opts.MaxDelay)
}

func TestInsertPassesRowAsValueSaver(t *testing.T) {
	w, fake, _ := newTestWriter(t)
	require.NoError(t, w.Insert(context.Background(), types.MarketplaceEventRow{EventID: "evt-1"}))

	require.Equal(t, []string{"marketplace_events"}, fake.tables)
	saver, ok := fake.rows[0][0].(cbigquery.ValueSaver)
	require.True(t, ok)
	_, insertID, err := saver.Save()
	require.NoError(t, err)
	require.Equal(t, "evt-1", insertID)
}

func TestInsertRetriesTransientErrorsWithCappedBackoff(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	w, fake, waits := newTestWriter(t, unavailable, unavailable)

	require.NoError(t, w.Insert(context.Background(), types.MarketplaceEventRow{EventID: "1"}))
	require.Len(t, fake.tables, 3)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, *waits)
}

func TestInsertStopsOnPermanentError(t *testing.T) {
	w, fake, _ := newTestWriter(t, &googleapi.Error{Code: http.StatusBadRequest})
	err := w.Insert(context.Background(), types.MarketplaceEventRow{EventID: "1"})

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	require.Len(t, fake.tables, 1)
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	w, fake, _ := newTestWriter(t, unavailable, unavailable, unavailable, unavailable)

	err := w.Insert(context.Background(), types.MarketplaceEventRow{EventID: "1"})
	require.ErrorContains(t, err, "after 3 attempt(s)")
	require.Len(t, fake.tables, 3)
}

func TestInsertHonoursCancelledBackoff(t *testing.T) {
	w, fake, _ := newTestWriter(t, &googleapi.Error{Code: http.StatusTooManyRequests})
	w.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	err := w.Insert(context.Background(), types.MarketplaceEventRow{EventID: "1"})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, fake.tables, 1)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"http 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"http 400", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"all rows transient", cbigquery.PutMultiError{
			{RowIndex: 0, Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}},
		}, true},
		{"one bad row", cbigquery.PutMultiError{
			{RowIndex: 0, Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}},
			{RowIndex: 1, Errors: cbigquery.MultiError{errors.New("no such field")}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestJSONColumn(t *testing.T) {
	col, err := JSONColumn(map[string]any{"order_id": "abc"})
	require.NoError(t, err)
	require.True(t, col.Valid)
	require.JSONEq(t, `{"order_id":"abc"}`, col.JSONVal)

	col, err = JSONColumn(json.RawMessage(`{"status":"delivered"}`))
	require.NoError(t, err)
	require.Equal(t, `{"status":"delivered"}`, col.JSONVal)

	for _, empty := range []any{nil, json.RawMessage(nil), []byte{}, (*struct{})(nil)} {
		col, err = JSONColumn(empty)
		require.NoError(t, err)
		require.False(t, col.Valid)
	}

	_, err = JSONColumn(make(chan int))
	require.Error(t, err)
}
