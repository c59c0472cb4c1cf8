package main

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	backlogReportEvery    = 15 * time.Second
	workerName            = "outbox-publisher"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	LockPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	RecordFailureTx(tx *gorm.DB, id uuid.UUID, cause error) error
	ParkTx(tx *gorm.DB, id uuid.UUID, cause error, maxAttempts int) error
	Backlog(ctx context.Context, maxAttempts int) (outbox.Backlog, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// eventLedger remembers event IDs already handed to the broker, so a batch
// replayed after a failed commit does not publish twice.
type eventLedger interface {
	Claim(ctx context.Context, worker string, eventID uuid.UUID) (idempotency.Entry, error)
	Confirm(ctx context.Context, worker string, eventID uuid.UUID, messageID string) error
	Release(ctx context.Context, worker string, eventID uuid.UUID) error
}

type publishMetrics interface {
	RecordOutboxPublish(eventType string, err error)
	RecordOutboxBacklog(pending int64, oldestAge time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordOutboxPublish(string, error) {}
func (noopMetrics) RecordOutboxBacklog(int64, time.Duration) {}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Ledger           eventLedger
	Metrics          publishMetrics
}

// Service drains outbox_events to Pub/Sub. Each poll locks a batch, publishes
// row by row and commits the row updates together.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	ledger           eventLedger
	metrics          publishMetrics
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	backlogReported  time.Time
	now              func() time.Time
}

// NewService reports every missing dependency at once. Ledger and Metrics are
// optional.
func NewService(params ServiceParams) (*Service, error) {
	var err error
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"config", params.Config == nil},
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"pubsub client", params.PubSub == nil},
		{"outbox repository", params.Repository == nil},
		{"event registry", params.Registry == nil},
		{"dlq repository", params.DLQRepository == nil},
	} {
		if dep.missing {
			err = multierr.Append(err, errors.New(dep.name+" is required"))
		}
	}
	if err != nil {
		return nil, err
	}

	s := &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		ledger:           params.Ledger,
		metrics:          params.Metrics,
		publisherFactory: params.PublisherFactory,
		batchSize:        positiveOr(params.Config.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(params.Config.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval:     defaultPollInterval,
		now:              time.Now,
	}
	if ms := params.Config.Outbox.PollIntervalMS; ms > 0 {
		s.pollInterval = time.Duration(ms) * time.Millisecond
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.publisherFactory == nil {
		s.publisherFactory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}
	return s, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
