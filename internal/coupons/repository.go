package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// ErrUsageCapRaced means the guarded increment found the cap already reached.
var ErrUsageCapRaced = errors.New("coupon usage cap reached during redemption")

type Repository struct {
	db   *gorm.DB
	lock bool
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ForUpdate binds the repository to tx and makes coupon reads lock the row.
func (r *Repository) ForUpdate(tx *gorm.DB) Store {
	return &Repository{db: tx, lock: true}
}

// FindByCode returns nil, nil when no coupon has the code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	q := r.db.WithContext(ctx).Where("code = ?", code)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var coupon models.Coupon
	if err := q.First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *Repository) CountCustomerUsage(ctx context.Context, couponID, customerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&n).Error
	return n, err
}

// Redeem records usage and bumps current_uses in tx. The increment is guarded
// by the cap so it cannot overshoot even without the row lock.
func (r *Repository) Redeem(ctx context.Context, tx *gorm.DB, usage models.CouponUsage) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).Create(&usage).Error; err != nil {
		return err
	}
	res := tx.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", usage.CouponID).
		Updates(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   usage.UsedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrUsageCapRaced, "coupon usage limit reached")
	}
	return nil
}
