package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// Quotation is the header row of a priced quotation. Items are immutable once
// written; only Status and PDFURL change afterwards.
type Quotation struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuotationNumber  string                `gorm:"column:quotation_number;not null;uniqueIndex:ux_quotations_number"`
	CustomerID       *uuid.UUID            `gorm:"column:customer_id;type:uuid"`
	GuestName        *string               `gorm:"column:guest_name"`
	GuestEmail       *string               `gorm:"column:guest_email"`
	GuestPhone       *string               `gorm:"column:guest_phone"`
	CompanyName      *string               `gorm:"column:company_name"`
	Status           enums.QuotationStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	Currency         string                `gorm:"column:currency;not null;default:'JPY'"`
	SubtotalAmount   int64                 `gorm:"column:subtotal_amount;not null"`
	DiscountAmount   int64                 `gorm:"column:discount_amount;not null;default:0"`
	TaxAmount        int64                 `gorm:"column:tax_amount;not null;default:0"`
	TotalAmount      int64                 `gorm:"column:total_amount;not null"`
	CouponID         *uuid.UUID            `gorm:"column:coupon_id;type:uuid"`
	CouponCode       *string               `gorm:"column:coupon_code"`
	RateTableVersion string                `gorm:"column:rate_table_version;not null"`
	Notes            *string               `gorm:"column:notes"`
	ValidUntil       time.Time             `gorm:"column:valid_until;not null"`
	PDFURL           *string               `gorm:"column:pdf_url"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
	Items            []QuotationItem       `gorm:"foreignKey:QuotationID"`
}

func (Quotation) TableName() string { return "quotations" }

// QuotationItem freezes the specification and breakdown the customer accepted.
type QuotationItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuotationID   uuid.UUID       `gorm:"column:quotation_id;type:uuid;not null"`
	LineNumber    int             `gorm:"column:line_number;not null"`
	ProductName   string          `gorm:"column:product_name;not null"`
	Specification dbtypes.JSONB   `gorm:"column:specification;type:jsonb;not null"`
	Breakdown     dbtypes.JSONB   `gorm:"column:breakdown;type:jsonb;not null"`
	Quantity      int64           `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	TotalPrice    int64           `gorm:"column:total_price;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (QuotationItem) TableName() string { return "quotation_items" }
