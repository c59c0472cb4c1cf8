package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// Coupon is administered elsewhere; the quotation core only reads it and
// bumps CurrentUses when a quotation redeems it.
type Coupon struct {
	ID                    uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                  string           `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	Name                  string           `gorm:"column:name;not null"`
	Type                  enums.CouponType `gorm:"column:type;type:text;not null"`
	Value                 decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinimumOrderAmount    int64            `gorm:"column:minimum_order_amount;not null;default:0"`
	MaximumDiscountAmount *int64           `gorm:"column:maximum_discount_amount"`
	MaxUses               *int             `gorm:"column:max_uses"`
	CurrentUses           int              `gorm:"column:current_uses;not null;default:0"`
	MaxUsesPerCustomer    *int             `gorm:"column:max_uses_per_customer"`
	IsActive              bool             `gorm:"column:is_active;not null;default:true"`
	ValidFrom             time.Time        `gorm:"column:valid_from;not null"`
	ValidUntil            *time.Time       `gorm:"column:valid_until"`
	CreatedAt             time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

// CouponUsage records one redemption against an accepted quotation.
type CouponUsage struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID       uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null"`
	CustomerID     *uuid.UUID `gorm:"column:customer_id;type:uuid"`
	QuotationID    uuid.UUID  `gorm:"column:quotation_id;type:uuid;not null"`
	DiscountAmount int64      `gorm:"column:discount_amount;not null"`
	OriginalAmount int64      `gorm:"column:original_amount;not null"`
	FinalAmount    int64      `gorm:"column:final_amount;not null"`
	UsedAt         time.Time  `gorm:"column:used_at;not null"`
}

func (CouponUsage) TableName() string { return "coupon_usage" }
