// Package gcs stores listing images in a Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const (
	pingTimeout       = 5 * time.Second
	defaultPublicBase = "https://storage.googleapis.com"
)

var (
	ErrNotConnected  = errors.New("gcs client not initialized")
	ErrNoBucket      = errors.New("gcs bucket not configured")
	ErrEmptyObjectID = errors.New("object name is required")
)

// Client wraps the JSON API objects service for a default bucket.
type Client struct {
	objects       *storage.ObjectsService
	bucket        string
	publicBaseURL string
}

// NewClient connects with the configured service account, or with
// application default credentials, and lists the bucket once to prove access.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	client, err := newClient(ctx, cfg, clientOptions(gcp)...)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", client.bucket), "gcs client initialized")
	}
	return client, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, opts ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs service: %w", err)
	}
	return &Client{
		objects:       storage.NewObjectsService(svc),
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return append(opts, option.WithCredentialsJSON([]byte(raw)))
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return append(opts, option.WithCredentialsFile(path))
	}
	return opts
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

func (c *Client) Close() error {
	return nil
}

// Ping needs storage.objects.list on the default bucket.
func (c *Client) Ping(ctx context.Context) error {
	bucket, err := c.resolveBucket("")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.objects.List(bucket).MaxResults(1).Fields("items/name").Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

// UploadObject writes body to bucket/object. An empty bucket means the
// default one.
func (c *Client) UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) error {
	bucket, err := c.resolveBucket(bucket)
	if err != nil {
		return err
	}
	if strings.TrimSpace(object) == "" {
		return ErrEmptyObjectID
	}
	var mediaOpts []googleapi.MediaOption
	if contentType != "" {
		mediaOpts = append(mediaOpts, googleapi.ContentType(contentType))
	}
	_, err = c.objects.Insert(bucket, &storage.Object{Name: object, ContentType: contentType}).
		Media(body, mediaOpts...).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gcs upload failed: %w", err)
	}
	return nil
}

// DeleteObject removes bucket/object. Deleting a missing object succeeds.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	bucket, err := c.resolveBucket(bucket)
	if err != nil {
		return err
	}
	if strings.TrimSpace(object) == "" {
		return ErrEmptyObjectID
	}
	if err := c.objects.Delete(bucket, object).Context(ctx).Do(); err != nil && !notFound(err) {
		return fmt.Errorf("gcs delete failed: %w", err)
	}
	return nil
}

// PublicURL returns the browser-facing URL of an object in the default bucket.
func (c *Client) PublicURL(object string) string {
	base := c.publicBaseURL
	if base == "" {
		base = defaultPublicBase
	}
	return fmt.Sprintf("%s/%s/%s", base, c.bucket, object)
}

func (c *Client) resolveBucket(bucket string) (string, error) {
	if c == nil || c.objects == nil {
		return "", ErrNotConnected
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		bucket = c.bucket
	}
	if bucket == "" {
		return "", ErrNoBucket
	}
	return bucket, nil
}

func notFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
