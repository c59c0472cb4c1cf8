package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/api/responses"
	"github.com/angelmondragon/packquote-backend/api/validators"
	"github.com/angelmondragon/packquote-backend/internal/inventory"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type stockService interface {
	Adjust(ctx context.Context, input inventory.AdjustInput) (inventory.AdjustResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error)
	History(ctx context.Context, id uuid.UUID, limit int) ([]models.InventoryTransaction, error)
}

type adjustStockRequest struct {
	Delta           int64  `json:"delta" validate:"ne=0"`
	Reason          string `json:"reason" validate:"required,max=500"`
	Type            string `json:"type" validate:"max=32"`
	ReferenceNumber string `json:"referenceNumber" validate:"max=100"`
	PerformedBy     string `json:"performedBy" validate:"max=200"`
}

type adjustStockResponse struct {
	PreviousQuantity int64 `json:"previousQuantity"`
	NewQuantity      int64 `json:"newQuantity"`
}

type inventoryRecordView struct {
	ID                uuid.UUID  `json:"id"`
	SKU               string     `json:"sku"`
	ProductID         *uuid.UUID `json:"productId,omitempty"`
	WarehouseLocation string     `json:"warehouseLocation"`
	BinLocation       *string    `json:"binLocation,omitempty"`
	QuantityOnHand    int64      `json:"quantityOnHand"`
	QuantityAllocated int64      `json:"quantityAllocated"`
	ReorderPoint      int64      `json:"reorderPoint"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type inventoryTransactionView struct {
	ID              uuid.UUID                      `json:"id"`
	Type            enums.InventoryTransactionType `json:"type"`
	Quantity        int64                          `json:"quantity"`
	QuantityBefore  int64                          `json:"quantityBefore"`
	QuantityAfter   int64                          `json:"quantityAfter"`
	Reason          string                         `json:"reason"`
	ReferenceNumber *string                        `json:"referenceNumber,omitempty"`
	PerformedBy     *string                        `json:"performedBy,omitempty"`
	CreatedAt       time.Time                      `json:"createdAt"`
}

// InventoryAdjust applies a signed delta to on-hand stock.
func InventoryAdjust(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Adjust(ctx, inventory.AdjustInput{
			InventoryID:     id,
			Delta:           body.Delta,
			Reason:          validators.SanitizeString(body.Reason, 500),
			Type:            enums.InventoryTransactionType(validators.SanitizeString(body.Type, 32)),
			ReferenceNumber: validators.SanitizeString(body.ReferenceNumber, 100),
			PerformedBy:     validators.SanitizeString(body.PerformedBy, 200),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustStockResponse{PreviousQuantity: result.PreviousQuantity, NewQuantity: result.NewQuantity})
	}
}

func InventoryGet(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		record, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventoryRecordView{
			ID:                record.ID,
			SKU:               record.SKU,
			ProductID:         record.ProductID,
			WarehouseLocation: record.WarehouseLocation,
			BinLocation:       record.BinLocation,
			QuantityOnHand:    record.QuantityOnHand,
			QuantityAllocated: record.QuantityAllocated,
			ReorderPoint:      record.ReorderPoint,
			UpdatedAt:         record.UpdatedAt,
		})
	}
}

// InventoryHistory lists the newest audit rows, limit 1..200 (default 50).
func InventoryHistory(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", validators.HistoryLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := svc.History(ctx, id, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		views := make([]inventoryTransactionView, 0, len(rows))
		for _, row := range rows {
			views = append(views, inventoryTransactionView{
				ID:              row.ID,
				Type:            row.TransactionType,
				Quantity:        row.Quantity,
				QuantityBefore:  row.QuantityBefore,
				QuantityAfter:   row.QuantityAfter,
				Reason:          row.Reason,
				ReferenceNumber: row.ReferenceNumber,
				PerformedBy:     row.PerformedBy,
				CreatedAt:       row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"transactions": views})
	}
}
