package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should park the row instead of
// retrying it. Reason is what lands in outbox_dlq.error_reason.
type NonRetryableError struct {
	Err    error
	Reason enums.OutboxDLQErrorReason
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err, Reason: enums.OutboxDLQReasonNonRetryable}
}

// NewUnroutableError marks events no topic or publisher can take.
func NewUnroutableError(err error) NonRetryableError {
	return NonRetryableError{Err: err, Reason: enums.OutboxDLQReasonUnroutable}
}

// NewInvalidPayloadError marks rows whose stored JSON cannot be decoded.
func NewInvalidPayloadError(err error) NonRetryableError {
	return NonRetryableError{Err: err, Reason: enums.OutboxDLQReasonInvalidPayload}
}

// DLQReason reports the dead-letter reason carried by err, if any.
func DLQReason(err error) (enums.OutboxDLQErrorReason, bool) {
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		return "", false
	}
	if !nonRetry.Reason.IsValid() {
		return enums.OutboxDLQReasonNonRetryable, true
	}
	return nonRetry.Reason, true
}

// NewEventRegistry routes customer-facing events to the notification topic and
// everything else to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventQuotationCreated,
			AggregateType:  enums.AggregateQuotation,
			PayloadFactory: func() any { return &payloads.QuotationCreatedEvent{} },
		},
		{
			EventType:      enums.EventQuotationStatusChanged,
			AggregateType:  enums.AggregateQuotation,
			PayloadFactory: func() any { return &payloads.QuotationStatusChangedEvent{} },
		},
		{
			EventType:      enums.EventSampleRequestCreated,
			AggregateType:  enums.AggregateSampleRequest,
			PayloadFactory: func() any { return &payloads.SampleRequestCreatedEvent{} },
		},
		{
			EventType:      enums.EventInventoryAdjusted,
			AggregateType:  enums.AggregateInventory,
			PayloadFactory: func() any { return &payloads.InventoryAdjustedEvent{} },
		},
	} {
		desc.Topic = cfg.DomainTopic
		if desc.EventType.NotifiesCustomer() {
			desc.Topic = cfg.NotificationTopic
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewUnroutableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewUnroutableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewInvalidPayloadError(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := event.Payload.Decode(&envelope); err != nil {
		return nil, NewInvalidPayloadError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewInvalidPayloadError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewInvalidPayloadError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
