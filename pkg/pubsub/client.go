// Package pubsub wraps the Pub/Sub v2 client: cached publishers for the
// outbox relay and verified subscribers for the workers.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

var (
	ErrNotConnected = errors.New("pubsub client not initialized")
	// ErrNoPublisher means no publisher could be opened for the topic.
	ErrNoPublisher = errors.New("pubsub publisher unavailable")
	ErrNotFound    = errors.New("pubsub resource does not exist")
)

type Client struct {
	client  *pubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails unless every configured topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errors.New("at least one pubsub topic is required")
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{client: ps, project: project, topics: topics, publishers: map[string]*pubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", strings.Join(topics, ",")), "pubsub client ready")
	}
	return c, nil
}

// topicNames returns the configured topics, trimmed and without repeats.
func topicNames(cfg config.PubSubConfig) []string {
	var out []string
	for _, name := range []string{cfg.OrdersTopic, cfg.MarketTopic} {
		name = strings.TrimSpace(name)
		if name != "" && !contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Ping checks that every configured topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrNotConnected
	}
	for _, name := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: TopicResourceName(c.project, name),
		})
		if err := lookupError("topic", name, err); err != nil {
			return err
		}
	}
	return nil
}

func lookupError(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	default:
		return fmt.Errorf("get %s %q: %w", kind, name, err)
	}
}

func (c *Client) publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := TopicResourceName(c.project, topic)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.publishers[full]
	if !ok {
		p = c.client.Publisher(full)
		c.publishers[full] = p
	}
	return p
}

// Publish blocks until the server accepts msg and returns its message id.
func (c *Client) Publish(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	p := c.publisher(topic)
	if p == nil {
		return "", fmt.Errorf("%w: %q", ErrNoPublisher, topic)
	}
	return p.Publish(ctx, msg).Get(ctx)
}

// Subscriber returns a receive handle for name once the subscription is
// confirmed to exist.
func (c *Client) Subscriber(ctx context.Context, name string) (*pubsub.Subscriber, error) {
	if c == nil || c.client == nil {
		return nil, ErrNotConnected
	}
	full := SubscriptionResourceName(c.project, name)
	if full == "" {
		return nil, fmt.Errorf("subscription %q not configured", name)
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	if err := lookupError("subscription", name, err); err != nil {
		return nil, err
	}
	return c.client.Subscriber(full), nil
}

// Close stops the cached publishers, flushing what they still hold.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for full, p := range c.publishers {
		p.Stop()
		delete(c.publishers, full)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func TopicResourceName(project, name string) string {
	return resourceName(project, "topics", name)
}

func SubscriptionResourceName(project, name string) string {
	return resourceName(project, "subscriptions", name)
}

// resourceName expands a bare id to projects/<project>/<collection>/<id>. A
// name that is already a full path is returned as is.
func resourceName(project, collection, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + collection + "/" + name
}
