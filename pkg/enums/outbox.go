package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateQuotation     OutboxAggregateType = "quotation"
	AggregateSampleRequest OutboxAggregateType = "sample_request"
	AggregateInventory     OutboxAggregateType = "inventory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateQuotation,
	AggregateSampleRequest,
	AggregateInventory,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event queued in outbox_events.
type OutboxEventType string

const (
	EventQuotationCreated       OutboxEventType = "quotation_created"
	EventQuotationStatusChanged OutboxEventType = "quotation_status_changed"
	EventSampleRequestCreated   OutboxEventType = "sample_request_created"
	EventInventoryAdjusted      OutboxEventType = "inventory_adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQuotationCreated,
	EventQuotationStatusChanged,
	EventSampleRequestCreated,
	EventInventoryAdjusted,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// NotifiesCustomer reports whether consumers should send the customer a message
// for this event. Those events are routed to the notification topic.
func (e OutboxEventType) NotifiesCustomer() bool {
	switch e {
	case EventQuotationCreated, EventSampleRequestCreated:
		return true
	default:
		return false
	}
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
