// Package pubsub wraps the Pub/Sub v2 client used by the outbox publisher.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// resource is one topic or subscription the deployment depends on.
type resource struct {
	kind string
	name string
}

type Client struct {
	client    *pubsub.Client
	projectID string
	required  []resource
}

// NewClient connects to Pub/Sub and fails unless every configured topic (and
// the domain subscription, when set) already exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	required := requiredResources(cfg)
	if len(required) == 0 {
		return nil, errNoTopics
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, required: required}
	if err := c.verify(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "resources", len(required)), "pubsub client initialized")
	return c, nil
}

// requiredResources lists the topics first. The domain subscription belongs
// to downstream consumers and is only checked when configured.
func requiredResources(cfg config.PubSubConfig) []resource {
	var out []resource
	for _, topic := range []string{cfg.DomainTopic, cfg.NotificationTopic} {
		if name := strings.TrimSpace(topic); name != "" {
			out = append(out, resource{kind: kindTopic, name: name})
		}
	}
	if len(out) == 0 {
		return nil
	}
	if name := strings.TrimSpace(cfg.DomainSubscription); name != "" {
		out = append(out, resource{kind: kindSubscription, name: name})
	}
	return out
}

// verify looks every required resource up in parallel.
func (c *Client) verify(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, res := range c.required {
		g.Go(func() error { return c.lookup(gctx, res) })
	}
	return g.Wait()
}

func (c *Client) lookup(ctx context.Context, res resource) error {
	full := resourceName(c.projectID, res.kind, res.name)
	if full == "" {
		return fmt.Errorf("%s %q not configured", res.kind, res.name)
	}
	var err error
	switch res.kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	default:
		return fmt.Errorf("unknown pubsub resource kind %q", res.kind)
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %s does not exist", res.kind, full)
	default:
		return fmt.Errorf("checking %s %s: %w", res.kind, full, err)
	}
}

// Publisher returns a handle for a topic ID or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindTopic, topic)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// Ping re-runs the startup lookups.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an ID into projects/<p>/<kind>/<id>. Full resource
// names of the same kind pass through unchanged.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/" + kind + "/" + n
}
