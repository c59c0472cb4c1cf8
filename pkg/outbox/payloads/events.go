package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// QuotationCreatedEvent is emitted once a quotation and its items commit.
type QuotationCreatedEvent struct {
	QuotationID     uuid.UUID  `json:"quotation_id"`
	QuotationNumber string     `json:"quotation_number"`
	CustomerID      *uuid.UUID `json:"customer_id,omitempty"`
	ContactEmail    string     `json:"contact_email,omitempty"`
	ItemCount       int        `json:"item_count"`
	TotalAmount     int64      `json:"total_amount"`
	CouponCode      string     `json:"coupon_code,omitempty"`
	ValidUntil      time.Time  `json:"valid_until"`
}

// QuotationStatusChangedEvent records a lifecycle transition.
type QuotationStatusChangedEvent struct {
	QuotationID     uuid.UUID             `json:"quotation_id"`
	QuotationNumber string                `json:"quotation_number"`
	From            enums.QuotationStatus `json:"from"`
	To              enums.QuotationStatus `json:"to"`
}

// SampleRequestCreatedEvent is emitted once a sample request commits.
type SampleRequestCreatedEvent struct {
	SampleRequestID uuid.UUID  `json:"sample_request_id"`
	RequestNumber   string     `json:"request_number"`
	CustomerID      *uuid.UUID `json:"customer_id,omitempty"`
	ContactEmail    string     `json:"contact_email,omitempty"`
	ItemCount       int        `json:"item_count"`
}

// InventoryAdjustedEvent reports a committed stock movement.
type InventoryAdjustedEvent struct {
	InventoryID     uuid.UUID                      `json:"inventory_id"`
	SKU             string                         `json:"sku,omitempty"`
	Delta           int64                          `json:"delta"`
	QuantityBefore  int64                          `json:"quantity_before"`
	QuantityAfter   int64                          `json:"quantity_after"`
	TransactionType enums.InventoryTransactionType `json:"transaction_type"`
	Reason          string                         `json:"reason"`
	ReferenceNumber string                         `json:"reference_number,omitempty"`
}
