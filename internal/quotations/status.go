package quotations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
)

// Get returns the quotation with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Quotation, error) {
	quotation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quotation")
	}
	if quotation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quotation not found")
	}
	return quotation, nil
}

// UpdateStatus applies a lifecycle transition and queues a status event.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.QuotationStatus) (*models.Quotation, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quotation status %q", next))
	}

	var updated *models.Quotation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quotation")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "quotation not found")
		}
		if !current.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move quotation from %s to %s", current.Status, next))
		}

		now := s.now().UTC()
		ok, err := repo.UpdateStatus(ctx, id, current.Status, next, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quotation status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quotation status changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuotationStatusChanged,
			AggregateType: enums.AggregateQuotation,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{Channel: "staff"},
			Data: payloads.QuotationStatusChangedEvent{
				QuotationID:     id,
				QuotationNumber: current.QuotationNumber,
				From:            current.Status,
				To:              next,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		current.Status = next
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithDocumentNumber(ctx, updated.QuotationNumber), map[string]any{
		"status": string(next),
	}), "quotation status changed")
	return updated, nil
}

// SetPDFURL records where the rendered document was stored.
func (s *Service) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	if url == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "pdf url required")
	}
	ok, err := s.repo.SetPDFURL(ctx, id, url, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store pdf url")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "quotation not found")
	}
	return nil
}
