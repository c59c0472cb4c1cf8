package outbox_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db/dbtest"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	aggregateID := uuid.New()
	customerID := uuid.New()

	ctx := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}).WithRequestID(context.Background(), "req-77")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSampleRequestCreated,
			AggregateType: enums.AggregateSampleRequest,
			AggregateID:   aggregateID,
			Actor:         &outbox.ActorRef{CustomerID: &customerID},
			Data:          payloads.SampleRequestCreatedEvent{SampleRequestID: aggregateID, RequestNumber: "SMP-20240105-AAAAAA", ItemCount: 3},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, rows[0].Payload.Decode(&envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "req-77", envelope.RequestID)
	assert.Equal(t, "req-77", envelope.Attributes()["request_id"])
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, customerID, *envelope.Actor.CustomerID)
	assert.JSONEq(t, `{"sample_request_id":"`+aggregateID.String()+`","request_number":"SMP-20240105-AAAAAA","item_count":3}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   uuid.New(),
			Data:          payloads.InventoryAdjustedEvent{Delta: 1},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.EqualValues(t, 0, dbtest.Count(t, client, "outbox_events"))
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ctx := context.Background()

	assert.Error(t, svc.Emit(ctx, nil, outbox.DomainEvent{}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventType("order_created"),
			AggregateType: enums.AggregateQuotation,
			AggregateID:   uuid.New(),
		})
	})
	assert.Error(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuotationCreated,
			AggregateType: enums.AggregateQuotation,
		})
	})
	assert.Error(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventType("order_created"),
			AggregateType: enums.OutboxAggregateType("order"),
		})
	})
	require.Error(t, err)
	for _, problem := range []string{"unknown event type", "unknown aggregate type", "aggregate id required"} {
		assert.Contains(t, err.Error(), problem)
	}
	assert.EqualValues(t, 0, dbtest.Count(t, client, "outbox_events"))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventQuotationCreated,
				AggregateType: enums.AggregateQuotation,
				AggregateID:   uuid.New(),
				Data:          payloads.QuotationCreatedEvent{ItemCount: i + 1},
				OccurredAt:    time.Date(2024, 1, 5, 9, 0, i, 0, time.UTC),
			})
		}))
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.LockPending(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		require.NoError(t, repo.MarkPublishedTx(tx, rows[0].ID))
		require.NoError(t, repo.RecordFailureTx(tx, rows[1].ID, errors.New("pubsub unavailable")))
		return repo.ParkTx(tx, rows[2].ID, errors.New("bad payload"), 3)
	})
	require.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.LockPending(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 1, rows[0].AttemptCount)
		require.NotNil(t, rows[0].LastError)
		assert.Equal(t, "pubsub unavailable", *rows[0].LastError)
		return nil
	})
	require.NoError(t, err)
}

func TestRepositoryBacklog(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()

	empty, err := repo.Backlog(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, empty.Pending)
	assert.Zero(t, empty.OldestAge(time.Now()))

	base := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	rows := []models.OutboxEvent{
		{CreatedAt: base.Add(time.Minute)},
		{CreatedAt: base},
		{CreatedAt: base.Add(-time.Hour), AttemptCount: 3},
		{CreatedAt: base.Add(-2 * time.Hour), PublishedAt: &base},
	}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, row := range rows {
			row.ID = uuid.New()
			row.EventType = enums.EventQuotationCreated
			row.AggregateType = enums.AggregateQuotation
			row.AggregateID = uuid.New()
			row.Payload = dbtypes.JSONB(`{}`)
			if err := repo.Insert(tx, row); err != nil {
				return err
			}
		}
		return nil
	}))

	backlog, err := repo.Backlog(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), backlog.Pending)
	assert.True(t, backlog.Oldest.Equal(base), "oldest = %s", backlog.Oldest)
	assert.Equal(t, 5*time.Minute, backlog.OldestAge(base.Add(5*time.Minute)))
	assert.Zero(t, backlog.OldestAge(base.Add(-time.Minute)))
}

func TestDLQRepositoryTruncatesMessages(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()

	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			ID:            uuid.New(),
			EventID:       uuid.New(),
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			FailedAt:      time.Now().UTC(),
		})
	}))

	rows, err := dlq.List(ctx, outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Len(t, *rows[0].ErrorMessage, 1024)
}

func TestDLQRepositoryFiltersAndKeepsUTF8(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()

	// 3-byte runes; 1024 is not a multiple of 3.
	msg := strings.Repeat("在", 400)
	insert := func(reason enums.OutboxDLQErrorReason, eventType enums.OutboxEventType) error {
		return client.WithTx(ctx, func(tx *gorm.DB) error {
			return dlq.InsertTx(tx, models.OutboxDLQ{
				ID:            uuid.New(),
				EventID:       uuid.New(),
				EventType:     eventType,
				AggregateType: enums.AggregateInventory,
				AggregateID:   uuid.New(),
				Payload:       []byte(`{}`),
				ErrorReason:   reason,
				ErrorMessage:  &msg,
				FailedAt:      time.Now().UTC(),
			})
		})
	}
	require.NoError(t, insert(enums.OutboxDLQReasonUnroutable, enums.EventInventoryAdjusted))
	require.NoError(t, insert(enums.OutboxDLQReasonMaxAttempts, enums.EventQuotationCreated))
	require.Error(t, insert(enums.OutboxDLQErrorReason("gave_up"), enums.EventInventoryAdjusted))

	rows, err := dlq.List(ctx, outbox.DLQFilter{Reason: enums.OutboxDLQReasonUnroutable})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventInventoryAdjusted, rows[0].EventType)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.True(t, utf8.ValidString(*rows[0].ErrorMessage))
	assert.Len(t, *rows[0].ErrorMessage, 1023)

	rows, err = dlq.List(ctx, outbox.DLQFilter{EventType: enums.EventQuotationCreated, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, rows[0].ErrorReason)
}
