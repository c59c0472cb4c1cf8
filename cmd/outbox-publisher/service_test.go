package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{
				ID:            uuid.New(),
				EventType:     enums.EventQuotationCreated,
				AggregateType: enums.AggregateQuotation,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-one"),
			},
			{
				ID:            uuid.New(),
				EventType:     enums.EventQuotationCreated,
				AggregateType: enums.AggregateQuotation,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-two"),
			},
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "pq-notification-events",
			AggregateType: enums.AggregateQuotation,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.QuotationCreatedEvent{},
	}
	eventRegistry := &fakeRegistry{resolved: resolved}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, eventRegistry, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestServiceProcessBatchSkipsAlreadyPublishedEvents(t *testing.T) {
	seen := uuid.New()
	fresh := uuid.New()
	busy := uuid.New()
	repo := &fakeRepo{events: []models.OutboxEvent{
		{ID: seen, EventType: enums.EventInventoryAdjusted, AggregateType: enums.AggregateInventory, AggregateID: uuid.New(), Payload: mustEnvelopePayload(t, "seen")},
		{ID: fresh, EventType: enums.EventInventoryAdjusted, AggregateType: enums.AggregateInventory, AggregateID: uuid.New(), Payload: mustEnvelopePayload(t, "fresh")},
		{ID: busy, EventType: enums.EventInventoryAdjusted, AggregateType: enums.AggregateInventory, AggregateID: uuid.New(), Payload: mustEnvelopePayload(t, "busy")},
	}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{id: "msg-fresh"}}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "pq-domain-events"},
		Payload:    &payloads.InventoryAdjustedEvent{},
	}
	ledger := &fakeLedger{entries: map[uuid.UUID]idempotency.Entry{
		seen: {State: idempotency.StatePublished, MessageID: "msg-seen"},
		busy: {State: idempotency.StateInFlight},
	}}
	metrics := &fakeMetrics{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)
	service.ledger = ledger
	service.metrics = metrics

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected seen and fresh rows marked published, got %d", len(repo.published))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("in-flight row must be left untouched, got %d failures", len(repo.failed))
	}
	if pub.calls != 1 {
		t.Fatalf("expected a single broker publish, got %d", pub.calls)
	}
	if got := ledger.entries[fresh]; got.State != idempotency.StatePublished || got.MessageID != "msg-fresh" {
		t.Fatalf("expected fresh event confirmed with broker id, got %+v", got)
	}
	if metrics.ok != 1 || metrics.failed != 0 {
		t.Fatalf("unexpected metrics ok=%d failed=%d", metrics.ok, metrics.failed)
	}
}

func TestServiceProcessBatchReleasesMarkOnFailure(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSampleRequestCreated,
		AggregateType: enums.AggregateSampleRequest,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "sample"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "pq-notification-events"},
		Payload:    &payloads.SampleRequestCreatedEvent{},
	}
	ledger := &fakeLedger{entries: map[uuid.UUID]idempotency.Entry{}}
	metrics := &fakeMetrics{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)
	service.ledger = ledger
	service.metrics = metrics

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if _, held := ledger.entries[event.ID]; held {
		t.Fatalf("expected mark to be released after a failed publish")
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected failed row, got %d", len(repo.failed))
	}
	if metrics.failed != 1 {
		t.Fatalf("expected failed publish to be counted")
	}
}

func TestServiceProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventQuotationCreated,
		AggregateType: enums.AggregateQuotation,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "nonretryable"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	registry := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakePublisher{}, registry, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.Payload == nil || !bytes.Equal([]byte(entry.Payload), []byte(event.Payload)) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventQuotationCreated,
		AggregateType: enums.AggregateQuotation,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "max-attempts"),
		AttemptCount:  1,
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "pq-notification-events",
			AggregateType: enums.AggregateQuotation,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    event.ID.String(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.QuotationCreatedEvent{},
	}
	registry := &fakeRegistry{resolved: resolved}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, registry, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestServiceProcessBatchParksUnroutableTopic(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventInventoryAdjusted,
		AggregateType: enums.AggregateInventory,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "unroutable"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "pq-missing-topic"},
		Payload:    &payloads.InventoryAdjustedEvent{},
	}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, nil, &fakeRegistry{resolved: resolved}, dlqRepo, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(dlqRepo.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlqRepo.entries))
	}
	if got := dlqRepo.entries[0].ErrorReason; got != enums.OutboxDLQReasonUnroutable {
		t.Fatalf("unexpected error reason: %s", got)
	}
	if len(repo.published) != 0 {
		t.Fatalf("unroutable event must not be marked published")
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, registry registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         registry,
		PublisherFactory: func(_ string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) dbtypes.JSONB {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return dbtypes.JSONB(payload)
}

type fakeRepo struct {
	events       []models.OutboxEvent
	published    []uuid.UUID
	failed       []uuid.UUID
	backlog      outbox.Backlog
	backlogErr   error
	backlogCalls int
}

func (f *fakeRepo) LockPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) Backlog(context.Context, int) (outbox.Backlog, error) {
	f.backlogCalls++
	return f.backlog, f.backlogErr
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) RecordFailureTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) ParkTx(tx *gorm.DB, id uuid.UUID, cause error, maxAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results []publishResult
	calls   int
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	id  string
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return f.id, f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeLedger struct {
	entries map[uuid.UUID]idempotency.Entry
}

func (f *fakeLedger) Claim(_ context.Context, _ string, id uuid.UUID) (idempotency.Entry, error) {
	if entry, ok := f.entries[id]; ok {
		return entry, nil
	}
	f.entries[id] = idempotency.Entry{State: idempotency.StateInFlight}
	return idempotency.Entry{State: idempotency.StateClaimed}, nil
}

func (f *fakeLedger) Confirm(_ context.Context, _ string, id uuid.UUID, messageID string) error {
	f.entries[id] = idempotency.Entry{State: idempotency.StatePublished, MessageID: messageID}
	return nil
}

func (f *fakeLedger) Release(_ context.Context, _ string, id uuid.UUID) error {
	delete(f.entries, id)
	return nil
}

type fakeMetrics struct {
	ok, failed int
	pending    int64
	oldestAge  time.Duration
}

func (f *fakeMetrics) RecordOutboxBacklog(pending int64, oldestAge time.Duration) {
	f.pending = pending
	f.oldestAge = oldestAge
}

func (f *fakeMetrics) RecordOutboxPublish(_ string, err error) {
	if err != nil {
		f.failed++
		return
	}
	f.ok++
}
