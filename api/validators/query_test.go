package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

func TestParsePaginationDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	require.Equal(t, pagination.DefaultLimit, params.Limit)
	require.Empty(t, params.Cursor)
}

func TestParsePaginationRejectsOutOfRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items?limit=1000", nil)
	_, err := ParsePagination(req)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParseOptionalQueryValues(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/items?min_price_cents=100&available=false&seller_id="+id.String(), nil)

	minPrice, err := ParseOptionalQueryInt(req, "min_price_cents", 0, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, 100, *minPrice)

	available, err := ParseOptionalQueryBool(req, "available")
	require.NoError(t, err)
	require.False(t, *available)

	seller, err := ParseOptionalQueryUUID(req, "seller_id")
	require.NoError(t, err)
	require.Equal(t, id, *seller)

	missing, err := ParseOptionalQueryInt(req, "max_price_cents", 0, 1_000_000)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/orders/x", nil), "orderId", id.String())
	got, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	bad := withURLParam(httptest.NewRequest(http.MethodGet, "/orders/x", nil), "orderId", "not-a-uuid")
	_, err = ParseUUIDParam(bad, "orderId")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}
