// Package inventory adjusts on-hand stock. The adjustment itself is a single
// guarded UPDATE; the history row and the outbox event follow on a best-effort
// basis and never undo a committed adjustment.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/metrics"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
)

type AdjustInput struct {
	InventoryID     uuid.UUID
	Delta           int64
	Reason          string
	Type            enums.InventoryTransactionType
	ReferenceNumber string
	PerformedBy     string
}

type AdjustResult struct {
	PreviousQuantity int64
	NewQuantity      int64
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockMetrics interface {
	RecordStockAdjustment(outcome string)
	IncHistoryFailure()
}

type Service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics stockMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the service. m may be nil.
func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter, m stockMetrics, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if m == nil {
		m = (*metrics.QuoteMetrics)(nil)
	}
	return &Service{repo: repo, tx: tx, outbox: emitter, metrics: m, logg: logg, now: time.Now}, nil
}

func (in AdjustInput) validate() error {
	details := map[string]string{}
	if in.InventoryID == uuid.Nil {
		details["inventoryId"] = "is required"
	}
	if in.Delta == 0 {
		details["delta"] = "must not be zero"
	}
	if strings.TrimSpace(in.Reason) == "" {
		details["reason"] = "is required"
	}
	if in.Type != "" && !in.Type.IsValid() {
		details["type"] = fmt.Sprintf("unknown transaction type %q", in.Type)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid inventory adjustment").WithDetails(details)
	}
	return nil
}

// Adjust applies the delta. INSUFFICIENT_STOCK is an expected outcome and is
// returned as a typed error; the stock is untouched in that case.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (AdjustResult, error) {
	if err := input.validate(); err != nil {
		s.metrics.RecordStockAdjustment(metrics.OutcomeRejected)
		return AdjustResult{}, err
	}
	if input.Type == "" {
		input.Type = enums.InventoryTxAdjustment
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"inventory_id": input.InventoryID.String(),
		"delta":        input.Delta,
	})

	adj, err := s.repo.Adjust(ctx, input.InventoryID, input.Delta)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) || pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			s.metrics.RecordStockAdjustment(metrics.OutcomeRejected)
		} else {
			s.metrics.RecordStockAdjustment(metrics.OutcomeError)
			s.logg.Error(ctx, "inventory adjustment failed", err)
		}
		return AdjustResult{}, err
	}
	s.metrics.RecordStockAdjustment(metrics.OutcomeOK)

	s.recordHistory(ctx, input, adj)
	s.emit(ctx, input, adj)

	return AdjustResult{PreviousQuantity: adj.PreviousQuantity, NewQuantity: adj.NewQuantity}, nil
}

func (s *Service) recordHistory(ctx context.Context, input AdjustInput, adj Adjustment) {
	row := models.InventoryTransaction{
		ID:              uuid.New(),
		InventoryID:     adj.InventoryID,
		TransactionType: input.Type,
		Quantity:        input.Delta,
		QuantityBefore:  adj.PreviousQuantity,
		QuantityAfter:   adj.NewQuantity,
		Reason:          strings.TrimSpace(input.Reason),
		ReferenceNumber: optional(input.ReferenceNumber),
		PerformedBy:     optional(input.PerformedBy),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.AppendHistory(ctx, row); err != nil {
		s.metrics.IncHistoryFailure()
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"quantity_before": adj.PreviousQuantity,
			"quantity_after":  adj.NewQuantity,
		}), "inventory history write failed", err)
	}
}

func (s *Service) emit(ctx context.Context, input AdjustInput, adj Adjustment) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   adj.InventoryID,
			Actor:         &outbox.ActorRef{Channel: "fulfillment"},
			Data: payloads.InventoryAdjustedEvent{
				InventoryID:     adj.InventoryID,
				SKU:             adj.SKU,
				Delta:           input.Delta,
				QuantityBefore:  adj.PreviousQuantity,
				QuantityAfter:   adj.NewQuantity,
				TransactionType: input.Type,
				Reason:          strings.TrimSpace(input.Reason),
				ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
			},
			OccurredAt: s.now().UTC(),
		})
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "inventory adjusted event not queued")
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Get returns the stock record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	}
	return record, nil
}

// History lists the newest audit rows for a record that exists.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, id, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory history")
	}
	return rows, nil
}
