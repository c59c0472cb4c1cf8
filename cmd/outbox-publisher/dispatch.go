package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/registry"
)

// outcome is what happened to a single row within a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeDuplicate
	outcomeRetry
	outcomeParked
	outcomeSkipped
)

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.LockPending(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0

		tally := map[outcome]int{}
		for _, event := range events {
			result, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			tally[result]++
		}
		if processed {
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"published": tally[outcomePublished],
				"duplicate": tally[outcomeDuplicate],
				"retry":     tally[outcomeRetry],
				"parked":    tally[outcomeParked],
				"skipped":   tally[outcomeSkipped],
			}), "outbox batch processed")
		}
		return nil
	})
	return processed, err
}

// dispatch publishes one row and records the result on it. A returned error
// aborts the batch transaction; broker failures are recorded, not returned.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeParked, s.park(ctx, tx, event, err, "", nil)
	}

	topic := resolved.Descriptor.Topic
	fields := s.eventFields(event, resolved.Envelope, topic)
	switch entry := s.claim(ctx, event); entry.State {
	case idempotency.StatePublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomeDuplicate, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		fields["message_id"] = entry.MessageID
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event already published, marking row")
		return outcomeDuplicate, nil
	case idempotency.StateInFlight:
		s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event claimed elsewhere, skipping")
		return outcomeSkipped, nil
	}

	messageID, err := s.publishResolved(ctx, event, resolved)
	s.metrics.RecordOutboxPublish(string(event.EventType), err)
	if err == nil {
		s.confirm(ctx, event, messageID)
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		fields["message_id"] = messageID
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil
	}

	s.forget(ctx, event)
	if _, terminal := registry.DLQReason(err); terminal {
		return outcomeParked, s.park(ctx, tx, event, err, topic, fields)
	}

	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		exhausted := registry.NonRetryableError{
			Err:    fmt.Errorf("max publish attempts reached: %w", err),
			Reason: enums.OutboxDLQReasonMaxAttempts,
		}
		return outcomeParked, s.park(ctx, tx, event, exhausted, topic, fields)
	}

	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error()), "outbox publish failed")
	if err := s.repo.RecordFailureTx(tx, event.ID, err); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// claim reserves the event for this worker. Redis trouble never blocks
// publishing, so a failed lookup counts as a fresh claim.
func (s *Service) claim(ctx context.Context, event models.OutboxEvent) idempotency.Entry {
	if s.ledger == nil {
		return idempotency.Entry{State: idempotency.StateClaimed}
	}
	entry, err := s.ledger.Claim(ctx, workerName, event.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox ledger claim failed")
		return idempotency.Entry{State: idempotency.StateClaimed}
	}
	return entry
}

func (s *Service) confirm(ctx context.Context, event models.OutboxEvent, messageID string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Confirm(ctx, workerName, event.ID, messageID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox ledger confirm failed")
	}
}

func (s *Service) forget(ctx context.Context, event models.OutboxEvent) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Release(ctx, workerName, event.ID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox ledger release failed")
	}
}

// park moves the row to the dead-letter table and pins its attempt count so
// it is never fetched again.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, topic string, fields map[string]any) error {
	reason, ok := registry.DLQReason(err)
	if !ok {
		reason = enums.OutboxDLQReasonNonRetryable
	}
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{}, topic)
	}
	fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error()), "outbox event parked in dlq")

	if dlqErr := s.dlq.InsertTx(tx, event.DeadLetter(reason, err, s.now())); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.ParkTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("park %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) (string, error) {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return "", registry.NewUnroutableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	attrs := resolved.Envelope.Attributes()
	attrs["event_type"] = string(event.EventType)
	attrs["aggregate_type"] = string(event.AggregateType)
	attrs["aggregate_id"] = event.AggregateID.String()
	attrs["created_at"] = event.CreatedAt.Format(time.RFC3339Nano)
	msg := &gcppubsub.Message{Data: []byte(event.Payload), Attributes: attrs}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	return result.Get(publishCtx)
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if envelope.RequestID != "" {
		fields["request_id"] = envelope.RequestID
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

// reportBacklog refreshes the backlog gauges, at most once per
// backlogReportEvery. Failures only cost a stale gauge.
func (s *Service) reportBacklog(ctx context.Context) {
	now := s.now()
	if !s.backlogReported.IsZero() && now.Sub(s.backlogReported) < backlogReportEvery {
		return
	}
	s.backlogReported = now
	backlog, err := s.repo.Backlog(ctx, s.maxAttempts)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox backlog query failed")
		return
	}
	age := backlog.OldestAge(now)
	s.metrics.RecordOutboxBacklog(backlog.Pending, age)
	if backlog.Pending > 0 {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"pending":        backlog.Pending,
			"oldest_age_sec": int64(age.Seconds()),
		}), "outbox backlog")
	}
}
