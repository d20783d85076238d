package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/campusmart/campusmart-backend/pkg/config"
)

func TestCredentialsPreferInlineJSON(t *testing.T) {
	require.Len(t, credentials(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	require.Len(t, credentials(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	require.Empty(t, credentials(config.GCPConfig{CredentialsJSON: "  "}))
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "ds", MarketplaceEventsTable: "t"}, nil)
	require.ErrorContains(t, err, "project")

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{MarketplaceEventsTable: "t"}, nil)
	require.ErrorContains(t, err, "dataset")

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "ds", MarketplaceEventsTable: " "}, nil)
	require.ErrorContains(t, err, "table")
}

func TestNilClientIsNotConnected(t *testing.T) {
	var c *Client
	ctx := context.Background()
	require.ErrorIs(t, c.Ping(ctx), ErrNotConnected)
	require.ErrorIs(t, c.InsertRows(ctx, "t", []any{1}), ErrNotConnected)
	_, err := c.Query(ctx, "SELECT 1", nil)
	require.ErrorIs(t, err, ErrNotConnected)
	require.Empty(t, c.TableRef("marketplace_events"))
	require.NoError(t, c.Close())
}

func TestNotFoundMatchesWrappedAPIError(t *testing.T) {
	require.True(t, notFound(fmt.Errorf("meta: %w", &googleapi.Error{Code: http.StatusNotFound})))
	require.False(t, notFound(&googleapi.Error{Code: http.StatusForbidden}))
	require.False(t, notFound(errors.New("boom")))
}
