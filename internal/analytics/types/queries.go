package types

import (
	"time"

	"github.com/google/uuid"
)

// Perspective selects which side of the orders a sales report covers.
type Perspective string

const (
	PerspectiveSeller Perspective = "seller"
	PerspectiveBuyer  Perspective = "buyer"
)

// SalesQueryRequest carries the input parameters for a per-user sales report.
type SalesQueryRequest struct {
	UserID      uuid.UUID
	Perspective Perspective
	Start       time.Time
	End         time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as an item.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SalesQueryResponse wraps the KPIs for the sales dashboard.
type SalesQueryResponse struct {
	OrdersSeries       []TimeSeriesPoint `json:"orders"`
	DeliveredSeries    []TimeSeriesPoint `json:"delivered"`
	CancelledSeries    []TimeSeriesPoint `json:"cancelled"`
	GrossRevenue       []TimeSeriesPoint `json:"gross_revenue"`
	TopItems           []LabelValue      `json:"top_items"`
	AverageOrderCents  float64           `json:"average_order_cents"`
	BargainedShare     float64           `json:"bargained_share"`
	NewCounterparts    int64             `json:"new_counterparts"`
	RepeatCounterparts int64             `json:"repeat_counterparts"`
}
