// Package samples records free sample requests. A request carries one to five
// items and is written in a single transaction with its outbox event.
package samples

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/internal/numbering"
	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/metrics"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
)

const (
	MinItems        = 1
	MaxItems        = 5
	MaxItemQuantity = 10

	document        = "sample_request"
	defaultAttempts = 5
)

const (
	MsgTooManyItems = "サンプルは最大5点までです"
	MsgNoItems      = "サンプルを1点以上選択してください"
	msgItemQuantity = "数量は1以上10以下で入力してください"
	msgProductName  = "商品名を入力してください"
	msgProductID    = "商品を選択してください"
	msgContact      = "お名前とメールアドレスを入力してください"
	msgAddress      = "住所を入力してください"
	msgWriteFailure = "サンプル請求の保存に失敗しました。時間をおいて再度お試しください"
)

type ItemInput struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
}

type CreateInput struct {
	CustomerID      *uuid.UUID
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	CompanyName     string
	ShippingAddress string
	Notes           string
	Items           []ItemInput
}

// CreateResult reports the outcome. ErrorMessage is customer-facing.
type CreateResult struct {
	Success         bool
	SampleRequestID uuid.UUID
	RequestNumber   string
	ItemsCreated    int
	ErrorCode       pkgerrors.Code
	ErrorMessage    string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberIssuer interface {
	InsertUnique(tx *gorm.DB, prefix string, attempts int, onRetry func(), insert func(number string) error) (string, error)
}

type documentMetrics interface {
	RecordDocumentWrite(document, outcome string)
	IncNumberRetry(document string)
}

type Service struct {
	tx       txRunner
	repo     *Repository
	numbers  numberIssuer
	outbox   outbox.Emitter
	metrics  documentMetrics
	logg     *logger.Logger
	attempts int
	now      func() time.Time
}

// NewService builds the service. numbers and m may be nil.
func NewService(tx txRunner, repo *Repository, numbers numberIssuer, emitter outbox.Emitter, m documentMetrics, logg *logger.Logger, attempts int) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("sample repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if numbers == nil {
		numbers = numbering.NewGenerator()
	}
	if m == nil {
		m = (*metrics.QuoteMetrics)(nil)
	}
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		numbers:  numbers,
		outbox:   emitter,
		metrics:  m,
		logg:     logg,
		attempts: attempts,
		now:      time.Now,
	}, nil
}

// Validate re-checks the request structure. It returns the first problem as a
// customer-facing message, or "".
func Validate(input CreateInput) string {
	switch {
	case len(input.Items) < MinItems:
		return MsgNoItems
	case len(input.Items) > MaxItems:
		return MsgTooManyItems
	case input.CustomerID == nil && (strings.TrimSpace(input.ContactName) == "" || strings.TrimSpace(input.ContactEmail) == ""):
		return msgContact
	case strings.TrimSpace(input.ShippingAddress) == "":
		return msgAddress
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return msgProductID
		}
		if strings.TrimSpace(item.ProductName) == "" {
			return msgProductName
		}
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			return msgItemQuantity
		}
	}
	return ""
}

// Create writes the header and every item, or nothing. The error is only set
// for storage that cannot be reached and exhausted numbering.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if msg := Validate(input); msg != "" {
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeRejected)
		return CreateResult{ErrorCode: pkgerrors.CodeValidation, ErrorMessage: msg}, nil
	}
	if input.CustomerID != nil {
		ctx = s.logg.WithCustomerID(ctx, input.CustomerID.String())
	}

	now := s.now().UTC()
	id := uuid.New()
	header := &models.SampleRequest{
		ID:              id,
		CustomerID:      input.CustomerID,
		ContactName:     optional(input.ContactName),
		ContactEmail:    optional(input.ContactEmail),
		ContactPhone:    optional(input.ContactPhone),
		CompanyName:     optional(input.CompanyName),
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		Status:          enums.SampleStatusReceived,
		Notes:           optional(input.Notes),
	}
	items := make([]models.SampleItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, models.SampleItem{
			ID:              uuid.New(),
			SampleRequestID: id,
			ProductID:       in.ProductID,
			ProductName:     strings.TrimSpace(in.ProductName),
			Quantity:        in.Quantity,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, err := s.numbers.InsertUnique(tx, numbering.SamplePrefix, s.attempts,
			func() { s.metrics.IncNumberRetry(document) },
			func(number string) error {
				header.RequestNumber = number
				return repo.CreateHeader(ctx, header)
			})
		if err != nil {
			return err
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSampleRequestCreated,
			AggregateType: enums.AggregateSampleRequest,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{CustomerID: input.CustomerID, Channel: "web"},
			Data: payloads.SampleRequestCreatedEvent{
				SampleRequestID: id,
				RequestNumber:   number,
				CustomerID:      input.CustomerID,
				ContactEmail:    strings.TrimSpace(input.ContactEmail),
				ItemCount:       len(items),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeError)
		if errors.Is(err, db.ErrTxBegin) || errors.Is(err, numbering.ErrNumbersExhausted) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logg.Error(ctx, "sample request write aborted", err)
			return CreateResult{}, err
		}
		s.logg.Error(s.logg.WithField(ctx, "diagnostic", pkgerrors.Dump(err)), "sample request write rolled back", err)
		return CreateResult{ErrorCode: pkgerrors.CodeInternal, ErrorMessage: msgWriteFailure}, nil
	}

	s.metrics.RecordDocumentWrite(document, metrics.OutcomeOK)
	s.logg.Info(s.logg.WithField(s.logg.WithDocumentNumber(ctx, header.RequestNumber), "items", len(items)), "sample request created")
	return CreateResult{
		Success:         true,
		SampleRequestID: id,
		RequestNumber:   header.RequestNumber,
		ItemsCreated:    len(items),
	}, nil
}

// Get returns a stored request with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.SampleRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sample request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample request not found")
	}
	return request, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
