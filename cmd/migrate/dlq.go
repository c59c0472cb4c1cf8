package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
)

type deadLetter struct {
	EventID      uuid.UUID                  `json:"eventId"`
	EventType    enums.OutboxEventType      `json:"eventType"`
	AggregateID  uuid.UUID                  `json:"aggregateId"`
	Reason       enums.OutboxDLQErrorReason `json:"reason"`
	Message      string                     `json:"message,omitempty"`
	AttemptCount int                        `json:"attemptCount"`
	FailedAt     time.Time                  `json:"failedAt"`
}

func dlqFilter(opts options) (outbox.DLQFilter, error) {
	filter := outbox.DLQFilter{
		EventType: enums.OutboxEventType(opts.eventType),
		Limit:     opts.limit,
	}
	if opts.reason != "" {
		reason, err := enums.ParseOutboxDLQErrorReason(opts.reason)
		if err != nil {
			return outbox.DLQFilter{}, err
		}
		filter.Reason = reason
	}
	return filter, nil
}

// writeDeadLetters prints one JSON object per line so output pipes into jq.
func writeDeadLetters(w io.Writer, rows []models.OutboxDLQ) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		out := deadLetter{
			EventID:      row.EventID,
			EventType:    row.EventType,
			AggregateID:  row.AggregateID,
			Reason:       row.ErrorReason,
			AttemptCount: row.AttemptCount,
			FailedAt:     row.FailedAt,
		}
		if row.ErrorMessage != nil {
			out.Message = *row.ErrorMessage
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}
