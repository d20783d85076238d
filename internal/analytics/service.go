package analytics

import (
	"context"
	"fmt"

	"github.com/campusmart/campusmart-backend/internal/analytics/query"
	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	"github.com/campusmart/campusmart-backend/pkg/bigquery"
)

// Service provides sales reports built from marketplace events.
type Service interface {
	// Query returns the sales KPIs for one user over the requested window.
	Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error)
}

type service struct {
	sales query.SalesService
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client, table string) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}

	sales, err := query.NewSalesService(client, client.TableRef(table))
	if err != nil {
		return nil, err
	}

	return &service{sales: sales}, nil
}

func (s *service) Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error) {
	return s.sales.Query(ctx, req)
}
