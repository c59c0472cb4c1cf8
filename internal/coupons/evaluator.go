// Package coupons decides whether a coupon applies to an order amount and how
// much it takes off. Evaluation never writes; redemption lives on Repository.
package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// Reason explains why a coupon was rejected. Rejections are results, not errors.
type Reason string

const (
	ReasonNotFound                  Reason = "coupon-not-found"
	ReasonInactive                  Reason = "coupon-inactive"
	ReasonNotYetValid               Reason = "coupon-not-yet-valid"
	ReasonExpired                   Reason = "coupon-expired"
	ReasonUsageLimitReached         Reason = "usage-limit-reached"
	ReasonMinimumOrderNotMet        Reason = "minimum-order-not-met"
	ReasonCustomerUsageLimitReached Reason = "customer-usage-limit-reached"
)

// Evaluation is the outcome of one check. Coupon is set whenever the code
// resolved, even if it was then rejected.
type Evaluation struct {
	Valid          bool
	Reason         Reason
	Coupon         *models.Coupon
	DiscountAmount int64
	FinalAmount    int64
}

// Store reads coupons and their usage. ForUpdate returns a store bound to tx
// whose coupon reads take a row lock.
type Store interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountCustomerUsage(ctx context.Context, couponID, customerID uuid.UUID) (int64, error)
	ForUpdate(tx *gorm.DB) Store
}

type Evaluator struct {
	store Store
	now   func() time.Time
}

func NewEvaluator(store Store, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{store: store, now: now}
}

// NormalizeCode upper-cases and trims a code the way coupons are stored.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate checks code against orderAmount (yen). Checks run in a fixed order
// and the first failure wins.
func (e *Evaluator) Evaluate(ctx context.Context, code string, orderAmount int64, customerID *uuid.UUID) (Evaluation, error) {
	return e.evaluate(ctx, e.store, code, orderAmount, customerID)
}

// EvaluateTx runs the same rules against a row locked inside tx, so a
// concurrent redemption cannot slip past the usage caps.
func (e *Evaluator) EvaluateTx(ctx context.Context, tx *gorm.DB, code string, orderAmount int64, customerID *uuid.UUID) (Evaluation, error) {
	return e.evaluate(ctx, e.store.ForUpdate(tx), code, orderAmount, customerID)
}

func (e *Evaluator) evaluate(ctx context.Context, store Store, code string, orderAmount int64, customerID *uuid.UUID) (Evaluation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return reject(nil, ReasonNotFound, orderAmount), nil
	}
	coupon, err := store.FindByCode(ctx, code)
	if err != nil {
		return Evaluation{}, err
	}
	if coupon == nil {
		return reject(nil, ReasonNotFound, orderAmount), nil
	}

	now := e.now()
	switch {
	case !coupon.IsActive:
		return reject(coupon, ReasonInactive, orderAmount), nil
	case now.Before(coupon.ValidFrom):
		return reject(coupon, ReasonNotYetValid, orderAmount), nil
	case coupon.ValidUntil != nil && now.After(*coupon.ValidUntil):
		return reject(coupon, ReasonExpired, orderAmount), nil
	case coupon.MaxUses != nil && coupon.CurrentUses >= *coupon.MaxUses:
		return reject(coupon, ReasonUsageLimitReached, orderAmount), nil
	case orderAmount < coupon.MinimumOrderAmount:
		return reject(coupon, ReasonMinimumOrderNotMet, orderAmount), nil
	}

	if customerID != nil && coupon.MaxUsesPerCustomer != nil {
		used, err := store.CountCustomerUsage(ctx, coupon.ID, *customerID)
		if err != nil {
			return Evaluation{}, err
		}
		if used >= int64(*coupon.MaxUsesPerCustomer) {
			return reject(coupon, ReasonCustomerUsageLimitReached, orderAmount), nil
		}
	}

	discount := Discount(coupon, orderAmount)
	return Evaluation{
		Valid:          true,
		Coupon:         coupon,
		DiscountAmount: discount,
		FinalAmount:    orderAmount - discount,
	}, nil
}

// Discount computes the yen amount coupon takes off orderAmount, clamped to
// the coupon's maximum and to the order itself.
func Discount(coupon *models.Coupon, orderAmount int64) int64 {
	var discount int64
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = decimal.NewFromInt(orderAmount).
			Mul(coupon.Value).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case enums.CouponTypeFixedAmount:
		discount = coupon.Value.Round(0).IntPart()
	default:
		// free_shipping discounts delivery downstream, not the quoted amount.
		discount = 0
	}
	if coupon.MaximumDiscountAmount != nil && discount > *coupon.MaximumDiscountAmount {
		discount = *coupon.MaximumDiscountAmount
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func reject(coupon *models.Coupon, reason Reason, orderAmount int64) Evaluation {
	return Evaluation{Reason: reason, Coupon: coupon, FinalAmount: orderAmount}
}
