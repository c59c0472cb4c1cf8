package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// ErrInsufficientStock means the adjustment would drive on-hand stock below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// adjustSQL is the whole read-modify-write. The guard and the write are one
// statement, so two concurrent decrements can never both pass the check.
const adjustSQL = `
	UPDATE inventory
	SET quantity_on_hand = quantity_on_hand + ?,
		updated_at = ?
	WHERE id = ? AND quantity_on_hand + ? >= 0
	RETURNING quantity_on_hand, sku`

// Adjustment is the committed effect of one Adjust call.
type Adjustment struct {
	InventoryID      uuid.UUID
	SKU              string
	PreviousQuantity int64
	NewQuantity      int64
}

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Adjust adds delta to quantity_on_hand atomically. It fails with NOT_FOUND
// for an unknown row and with INSUFFICIENT_STOCK (wrapping
// ErrInsufficientStock) when the result would be negative.
func (r *Repository) Adjust(ctx context.Context, id uuid.UUID, delta int64) (Adjustment, error) {
	rows, err := r.db.WithContext(ctx).Raw(adjustSQL, delta, r.now().UTC(), id, delta).Rows()
	if err != nil {
		return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
	}
	defer rows.Close()

	var (
		after int64
		sku   string
		found bool
	)
	if rows.Next() {
		if err := rows.Scan(&after, &sku); err != nil {
			return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan adjusted quantity")
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
	}
	if found {
		return Adjustment{InventoryID: id, SKU: sku, PreviousQuantity: after - delta, NewQuantity: after}, nil
	}
	// Release the connection before the follow-up read.
	rows.Close()
	return Adjustment{}, r.explainMiss(ctx, id, delta)
}

func (r *Repository) explainMiss(ctx context.Context, id uuid.UUID, delta int64) error {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).Select("id", "quantity_on_hand").Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, ErrInsufficientStock,
		fmt.Sprintf("only %d on hand", record.QuantityOnHand)).
		WithDetails(map[string]any{
			"inventoryId": id.String(),
			"onHand":      record.QuantityOnHand,
			"delta":       delta,
		})
}

// AppendHistory writes one audit row. It runs outside any transaction.
func (r *Repository) AppendHistory(ctx context.Context, row models.InventoryTransaction) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// FindByID returns the record or nil, nil.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// History lists audit rows for a record, newest first.
func (r *Repository) History(ctx context.Context, id uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("inventory_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
