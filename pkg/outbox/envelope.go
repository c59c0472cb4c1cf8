package outbox

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is bumped when PayloadEnvelope changes incompatibly.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event. Guest requests carry no customer.
type ActorRef struct {
	CustomerID *uuid.UUID `json:"customerId,omitempty"`
	Channel    string     `json:"channel,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body. RequestID ties a message back to the API
// request that produced it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	RequestID  string          `json:"requestId,omitempty"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Attributes returns the Pub/Sub attributes derived from the envelope.
// Subscribers filter on these without decoding the body.
func (e PayloadEnvelope) Attributes() map[string]string {
	attrs := map[string]string{
		"event_id":         e.EventID,
		"envelope_version": strconv.Itoa(e.Version),
	}
	if e.RequestID != "" {
		attrs["request_id"] = e.RequestID
	}
	if e.Actor != nil && e.Actor.Channel != "" {
		attrs["channel"] = e.Actor.Channel
	}
	return attrs
}
