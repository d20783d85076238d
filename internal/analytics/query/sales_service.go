package query

import (
	"context"
	"errors"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

const (
	timeSeriesCountSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  COUNT(DISTINCT order_id) AS value
FROM %s
WHERE %s
  AND event_type = '%s'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	timeSeriesRevenueSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  SUM(COALESCE(gross_revenue_cents, 0)) AS value
FROM %s
WHERE %s
  AND event_type = 'order_delivered'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topItemsSQL = `
SELECT item_id AS label, SUM(COALESCE(gross_revenue_cents, 0)) AS value
FROM %s
WHERE %s
  AND item_id IS NOT NULL
  AND event_type = 'order_delivered'
  AND occurred_at BETWEEN @start AND @end
GROUP BY item_id
ORDER BY value DESC
LIMIT 5
`

	averageOrderSQL = `
SELECT SAFE_DIVIDE(SUM(COALESCE(gross_revenue_cents, 0)), NULLIF(COUNT(DISTINCT order_id), 0)) AS value
FROM %s
WHERE %s
  AND event_type = 'order_delivered'
  AND occurred_at BETWEEN @start AND @end
`

	bargainedShareSQL = `
SELECT SAFE_DIVIDE(COUNTIF(bargained_price_cents IS NOT NULL), NULLIF(COUNT(*), 0)) AS value
FROM %s
WHERE %s
  AND event_type = 'order_created'
  AND occurred_at BETWEEN @start AND @end
`

	newRepeatSQL = `
WITH prior AS (
  SELECT DISTINCT %[3]s AS counterpart
  FROM %[1]s
  WHERE %[2]s
    AND event_type = 'order_delivered'
    AND occurred_at < @start
    AND %[3]s IS NOT NULL
),
current AS (
  SELECT DISTINCT %[3]s AS counterpart,
    CASE
      WHEN %[3]s IN (SELECT counterpart FROM prior) THEN 'repeat'
      ELSE 'new'
    END AS category
  FROM %[1]s
  WHERE %[2]s
    AND event_type = 'order_delivered'
    AND occurred_at BETWEEN @start AND @end
    AND %[3]s IS NOT NULL
)
SELECT
  COUNTIF(category = 'new') AS new_counterparts,
  COUNTIF(category = 'repeat') AS repeat_counterparts
FROM current
`
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

// SalesService answers per-user sales dashboards from BigQuery marketplace_events.
type SalesService interface {
	Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error)
}

type salesService struct {
	client   rowQuerier
	tableRef string
}

// NewSalesService builds a service backed by BigQuery. tableRef must be a fully qualified, quoted table.
func NewSalesService(client rowQuerier, tableRef string) (SalesService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if tableRef == "" {
		return nil, fmt.Errorf("table reference required")
	}
	return &salesService{client: client, tableRef: tableRef}, nil
}

type seriesRow struct {
	Day   string `bigquery:"day"`
	Value int64  `bigquery:"value"`
}

type labelRow struct {
	Label string `bigquery:"label"`
	Value int64  `bigquery:"value"`
}

type ratioRow struct {
	Value cloudbigquery.NullFloat64 `bigquery:"value"`
}

type counterpartRow struct {
	New    int64 `bigquery:"new_counterparts"`
	Repeat int64 `bigquery:"repeat_counterparts"`
}

// Query runs every dashboard statement concurrently; the first failure cancels the rest.
func (s *salesService) Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	userClause, counterpart, err := buildPerspectiveClause(req.Perspective)
	if err != nil {
		return nil, err
	}
	params := baseParams(req)
	counts := func(eventType string) string {
		return fmt.Sprintf(timeSeriesCountSQL, s.tableRef, userClause, eventType)
	}

	var orders, delivered, cancelled, revenue []seriesRow
	var top []labelRow
	var average, bargained ratioRow
	var counterparts counterpartRow

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		orders, err = collect[seriesRow](groupCtx, s.client, "orders series", counts("order_created"), params)
		return err
	})
	group.Go(func() (err error) {
		delivered, err = collect[seriesRow](groupCtx, s.client, "delivered series", counts("order_delivered"), params)
		return err
	})
	group.Go(func() (err error) {
		cancelled, err = collect[seriesRow](groupCtx, s.client, "cancelled series", counts("order_canceled"), params)
		return err
	})
	group.Go(func() (err error) {
		revenue, err = collect[seriesRow](groupCtx, s.client, "revenue series", fmt.Sprintf(timeSeriesRevenueSQL, s.tableRef, userClause), params)
		return err
	})
	group.Go(func() (err error) {
		top, err = collect[labelRow](groupCtx, s.client, "top items", fmt.Sprintf(topItemsSQL, s.tableRef, userClause), params)
		return err
	})
	group.Go(func() (err error) {
		average, err = first[ratioRow](groupCtx, s.client, "average order", fmt.Sprintf(averageOrderSQL, s.tableRef, userClause), params)
		return err
	})
	group.Go(func() (err error) {
		bargained, err = first[ratioRow](groupCtx, s.client, "bargained share", fmt.Sprintf(bargainedShareSQL, s.tableRef, userClause), params)
		return err
	})
	group.Go(func() (err error) {
		counterparts, err = first[counterpartRow](groupCtx, s.client, "new vs repeat", fmt.Sprintf(newRepeatSQL, s.tableRef, userClause, counterpart), params)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var resp types.SalesQueryResponse
	resp.OrdersSeries = points(orders)
	resp.DeliveredSeries = points(delivered)
	resp.CancelledSeries = points(cancelled)
	resp.GrossRevenue = points(revenue)
	resp.TopItems = make([]types.LabelValue, 0, len(top))
	for _, row := range top {
		resp.TopItems = append(resp.TopItems, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	resp.AverageOrderCents = average.float()
	resp.BargainedShare = bargained.float()
	resp.NewCounterparts = counterparts.New
	resp.RepeatCounterparts = counterparts.Repeat
	return &resp, nil
}

func validateRequest(req types.SalesQueryRequest) error {
	if req.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

// buildPerspectiveClause returns the filter on the caller's column and the counterpart column.
func buildPerspectiveClause(perspective types.Perspective) (string, string, error) {
	switch perspective {
	case types.PerspectiveSeller:
		return "seller_id = @userID", "buyer_id", nil
	case types.PerspectiveBuyer:
		return "buyer_id = @userID", "seller_id", nil
	default:
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "perspective must be seller or buyer")
	}
}

func baseParams(req types.SalesQueryRequest) []cloudbigquery.QueryParameter {
	return []cloudbigquery.QueryParameter{
		{Name: "userID", Value: req.UserID.String()},
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
}

// collect reads every row of sql into T.
func collect[T any](ctx context.Context, q rowQuerier, what, sql string, params []cloudbigquery.QueryParameter) ([]T, error) {
	iter, err := q.Query(ctx, sql, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query "+what)
	}
	var rows []T
	for {
		var row T
		err := iter.Next(&row)
		if errors.Is(err, iterator.Done) {
			return rows, nil
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+what)
		}
		rows = append(rows, row)
	}
}

// first reads one row; an empty result is the zero T.
func first[T any](ctx context.Context, q rowQuerier, what, sql string, params []cloudbigquery.QueryParameter) (T, error) {
	var row T
	iter, err := q.Query(ctx, sql, params)
	if err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query "+what)
	}
	if err := iter.Next(&row); err != nil && !errors.Is(err, iterator.Done) {
		return row, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+what)
	}
	return row, nil
}

func points(rows []seriesRow) []types.TimeSeriesPoint {
	out := make([]types.TimeSeriesPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return out
}

func (r ratioRow) float() float64 {
	if !r.Value.Valid {
		return 0
	}
	return r.Value.Float64
}
