package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/packquote-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"pq-prod", "topics", "pq-domain-events", "projects/pq-prod/topics/pq-domain-events"},
		{"pq-prod", "topics", "  pq-domain-events ", "projects/pq-prod/topics/pq-domain-events"},
		{"pq-prod", "topics", "projects/other/topics/x", "projects/other/topics/x"},
		{"pq-prod", "subscriptions", "projects/other/topics/x", "projects/pq-prod/subscriptions/projects/other/topics/x"},
		{"", "topics", "pq-domain-events", ""},
		{"pq-prod", "topics", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.name))
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{DomainTopic: "t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("anything"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewClientRequiresTopic(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "pq-dev"}, config.PubSubConfig{DomainSubscription: "s"}, nil)
	assert.ErrorIs(t, err, errNoTopics)
}

func TestRequiredResources(t *testing.T) {
	got := requiredResources(config.PubSubConfig{
		DomainTopic:        " pq-domain-events ",
		NotificationTopic:  "",
		DomainSubscription: "pq-domain-sub",
	})
	assert.Equal(t, []resource{
		{kind: kindTopic, name: "pq-domain-events"},
		{kind: kindSubscription, name: "pq-domain-sub"},
	}, got)

	assert.Empty(t, requiredResources(config.PubSubConfig{DomainSubscription: "pq-domain-sub"}))
}
