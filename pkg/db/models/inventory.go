package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// InventoryRecord holds on-hand stock for one SKU. QuantityOnHand is only
// changed through the conditional update in the inventory repository.
type InventoryRecord struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU               string     `gorm:"column:sku;not null;uniqueIndex:ux_inventory_sku"`
	ProductID         *uuid.UUID `gorm:"column:product_id;type:uuid"`
	WarehouseLocation string     `gorm:"column:warehouse_location;not null;default:'main'"`
	BinLocation       *string    `gorm:"column:bin_location"`
	QuantityOnHand    int64      `gorm:"column:quantity_on_hand;not null;default:0"`
	QuantityAllocated int64      `gorm:"column:quantity_allocated;not null;default:0"`
	ReorderPoint      int64      `gorm:"column:reorder_point;not null;default:0"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryRecord) TableName() string { return "inventory" }

// InventoryTransaction is an append-only history row.
type InventoryTransaction struct {
	ID              uuid.UUID                      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InventoryID     uuid.UUID                      `gorm:"column:inventory_id;type:uuid;not null"`
	TransactionType enums.InventoryTransactionType `gorm:"column:transaction_type;type:text;not null"`
	Quantity        int64                          `gorm:"column:quantity;not null"`
	QuantityBefore  int64                          `gorm:"column:quantity_before;not null"`
	QuantityAfter   int64                          `gorm:"column:quantity_after;not null"`
	Reason          string                         `gorm:"column:reason;not null"`
	ReferenceNumber *string                        `gorm:"column:reference_number"`
	PerformedBy     *string                        `gorm:"column:performed_by"`
	CreatedAt       time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryTransaction) TableName() string { return "inventory_transactions" }
