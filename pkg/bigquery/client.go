// Package bigquery holds the connection to the marketplace analytics dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	ErrNotConnected = errors.New("bigquery client not connected")
	ErrTableMissing = errors.New("bigquery table does not exist")
)

// Client is scoped to one dataset. Table names passed to its methods are
// resolved inside that dataset.
type Client struct {
	sdk     *bigquery.Client
	dataset *bigquery.Dataset
	project string
	table   string
}

// NewClient connects and checks the dataset exists. Table checks are left to
// Ping and EnsureTable so the worker can create the table on first boot.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.MarketplaceEventsTable)
	switch {
	case project == "":
		return nil, errors.New("gcp project id is required")
	case datasetID == "":
		return nil, errors.New("bigquery dataset is required")
	case table == "":
		return nil, errors.New("bigquery marketplace events table is required")
	}

	sdk, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	c := &Client{sdk: sdk, dataset: sdk.Dataset(datasetID), project: project, table: table}

	metaCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(metaCtx); err != nil {
		_ = sdk.Close()
		return nil, fmt.Errorf("dataset %s: %w", datasetID, err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "table": table}), "bigquery connected")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping reports whether the marketplace table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.sdk == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Table(c.table).Metadata(ctx); err != nil {
		if notFound(err) {
			return fmt.Errorf("%w: %s", ErrTableMissing, c.table)
		}
		return err
	}
	return nil
}

// EnsureTable creates the marketplace table with schema when it does not
// exist yet, partitioned by day on partitionField. An existing table is left
// untouched.
func (c *Client) EnsureTable(ctx context.Context, schema bigquery.Schema, partitionField string) (created bool, err error) {
	err = c.Ping(ctx)
	if err == nil || !errors.Is(err, ErrTableMissing) {
		return false, err
	}
	meta := &bigquery.TableMetadata{Schema: schema}
	if partitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: partitionField}
	}
	if err := c.dataset.Table(c.table).Create(ctx, meta); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			// another worker won the race
			return false, nil
		}
		return false, fmt.Errorf("create table %s: %w", c.table, err)
	}
	return true, nil
}

// InsertRows streams rows into table. Rows that implement bigquery.ValueSaver
// control their own insert ids.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.sdk == nil {
		return ErrNotConnected
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(strings.TrimSpace(table)).Inserter().Put(ctx, rows)
}

// Query runs a parameterised statement and hands back the row iterator.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.sdk == nil {
		return nil, ErrNotConnected
	}
	q := c.sdk.Query(sql)
	q.Parameters = params
	return q.Read(ctx)
}

// TableRef returns `project.dataset.table` ready to splice into SQL.
func (c *Client) TableRef(table string) string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return "`" + c.project + "." + c.dataset.DatasetID + "." + strings.TrimSpace(table) + "`"
}

func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

func notFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
