// Package quotations writes accepted quotations: header, frozen line items,
// coupon redemption and the outbox event commit as one transaction.
package quotations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/internal/coupons"
	"github.com/angelmondragon/packquote-backend/internal/numbering"
	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/metrics"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/outbox/payloads"
)

const document = "quotation"

const (
	msgNoItems      = "見積もり明細を1件以上指定してください"
	msgInvalidItem  = "見積もり明細の内容が正しくありません"
	msgContact      = "お名前とメールアドレスを入力してください"
	msgRateVersion  = "料金表のバージョンが指定されていません"
	msgWriteFailure = "見積もりの保存に失敗しました。時間をおいて再度お試しください"
)

var couponMessages = map[coupons.Reason]string{
	coupons.ReasonNotFound:                  "クーポンコードが見つかりません",
	coupons.ReasonInactive:                  "このクーポンは現在ご利用いただけません",
	coupons.ReasonNotYetValid:               "このクーポンはまだご利用期間前です",
	coupons.ReasonExpired:                   "このクーポンは有効期限が切れています",
	coupons.ReasonUsageLimitReached:         "このクーポンは利用上限に達しました",
	coupons.ReasonMinimumOrderNotMet:        "ご注文金額がクーポンの最低利用金額に達していません",
	coupons.ReasonCustomerUsageLimitReached: "このクーポンはお客様の利用上限に達しました",
}

// CouponMessage returns the customer-facing text for a rejection reason.
func CouponMessage(reason coupons.Reason) string {
	if msg, ok := couponMessages[reason]; ok {
		return msg
	}
	return "このクーポンはご利用いただけません"
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type couponEvaluator interface {
	EvaluateTx(ctx context.Context, tx *gorm.DB, code string, orderAmount int64, customerID *uuid.UUID) (coupons.Evaluation, error)
}

type couponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, usage models.CouponUsage) error
}

type numberIssuer interface {
	InsertUnique(tx *gorm.DB, prefix string, attempts int, onRetry func(), insert func(number string) error) (string, error)
}

type documentMetrics interface {
	RecordDocumentWrite(document, outcome string)
	IncNumberRetry(document string)
}

// Deps wires the collaborators of Service.
type Deps struct {
	Tx       txRunner
	Repo     *Repository
	Coupons  couponEvaluator
	Redeemer couponRedeemer
	Numbers  numberIssuer
	Outbox   outbox.Emitter
	Metrics  documentMetrics
	Logger   *logger.Logger
	Config   config.QuotationConfig
	Now      func() time.Time
	// Rates and Pricer re-price submitted items. Both are optional.
	Rates  rateResolver
	Pricer tierPricer
}

type Service struct {
	tx       txRunner
	repo     *Repository
	coupons  couponEvaluator
	redeemer couponRedeemer
	numbers  numberIssuer
	outbox   outbox.Emitter
	metrics  documentMetrics
	logg     *logger.Logger
	cfg      config.QuotationConfig
	now      func() time.Time
	rates    rateResolver
	pricer   tierPricer
}

func NewService(d Deps) (*Service, error) {
	switch {
	case d.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case d.Repo == nil:
		return nil, fmt.Errorf("quotation repository required")
	case d.Coupons == nil || d.Redeemer == nil:
		return nil, fmt.Errorf("coupon evaluator and redeemer required")
	case d.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case d.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if d.Numbers == nil {
		d.Numbers = numbering.NewGenerator()
	}
	if d.Metrics == nil {
		d.Metrics = (*metrics.QuoteMetrics)(nil)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Config.ValidityPeriod <= 0 {
		d.Config.ValidityPeriod = 30 * 24 * time.Hour
	}
	if d.Config.NumberAttempts <= 0 {
		d.Config.NumberAttempts = 5
	}
	return &Service{
		tx:       d.Tx,
		repo:     d.Repo,
		coupons:  d.Coupons,
		redeemer: d.Redeemer,
		numbers:  d.Numbers,
		outbox:   d.Outbox,
		metrics:  d.Metrics,
		logg:     d.Logger,
		cfg:      d.Config,
		now:      d.Now,
		rates:    d.Rates,
		pricer:   d.Pricer,
	}, nil
}

// rejection aborts the transaction with a message for the customer.
type rejection struct {
	code    pkgerrors.Code
	message string
	cause   error
}

func (r *rejection) Error() string { return r.message }
func (r *rejection) Unwrap() error { return r.cause }

// Create validates input and writes the quotation. Business and write failures
// come back as a CreateResult with Success false; the returned error is only
// set when storage is unreachable or document numbers ran out.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if input.CustomerID != nil {
		ctx = s.logg.WithCustomerID(ctx, input.CustomerID.String())
	}
	if msg := validateInput(input); msg != "" {
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeRejected)
		return failed(pkgerrors.CodeValidation, msg), nil
	}
	if err := s.checkPrices(ctx, input); err != nil {
		return s.finish(ctx, err)
	}

	now := s.now().UTC()
	subtotal := int64(0)
	for _, item := range input.Items {
		subtotal += item.Breakdown.TotalCost
	}

	quotationID := uuid.New()
	result := CreateResult{QuotationID: quotationID, ItemCount: len(input.Items), SubtotalAmount: subtotal}
	var event payloads.QuotationCreatedEvent

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var evaluation *coupons.Evaluation
		if code := coupons.NormalizeCode(input.CouponCode); code != "" {
			ev, err := s.coupons.EvaluateTx(ctx, tx, code, subtotal, input.CustomerID)
			if err != nil {
				return err
			}
			if !ev.Valid {
				return &rejection{code: pkgerrors.CodeConflict, message: CouponMessage(ev.Reason)}
			}
			evaluation = &ev
			result.DiscountAmount = ev.DiscountAmount
		}

		result.TaxAmount = taxOn(subtotal-result.DiscountAmount, s.cfg.TaxPercent)
		result.TotalAmount = subtotal - result.DiscountAmount + result.TaxAmount

		header := buildHeader(quotationID, input, result, now.Add(s.cfg.ValidityPeriod))
		if evaluation != nil {
			header.CouponID = &evaluation.Coupon.ID
			header.CouponCode = &evaluation.Coupon.Code
		}

		repo := s.repo.WithTx(tx)
		number, err := s.numbers.InsertUnique(tx, numbering.QuotationPrefix, s.cfg.NumberAttempts,
			func() { s.metrics.IncNumberRetry(document) },
			func(number string) error {
				header.QuotationNumber = number
				return repo.CreateHeader(ctx, header)
			})
		if err != nil {
			return err
		}
		result.QuotationNumber = number

		items, err := buildItems(quotationID, input.Items)
		if err != nil {
			return err
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}

		if evaluation != nil {
			err := s.redeemer.Redeem(ctx, tx, models.CouponUsage{
				ID:             uuid.New(),
				CouponID:       evaluation.Coupon.ID,
				CustomerID:     input.CustomerID,
				QuotationID:    quotationID,
				DiscountAmount: result.DiscountAmount,
				OriginalAmount: subtotal,
				FinalAmount:    subtotal - result.DiscountAmount,
				UsedAt:         now,
			})
			if err != nil {
				if errors.Is(err, coupons.ErrUsageCapRaced) {
					return &rejection{code: pkgerrors.CodeConflict, message: CouponMessage(coupons.ReasonUsageLimitReached), cause: err}
				}
				return err
			}
		}

		event = payloads.QuotationCreatedEvent{
			QuotationID:     quotationID,
			QuotationNumber: number,
			CustomerID:      input.CustomerID,
			ContactEmail:    strings.TrimSpace(input.Contact.Email),
			ItemCount:       len(items),
			TotalAmount:     result.TotalAmount,
			ValidUntil:      header.ValidUntil,
		}
		if header.CouponCode != nil {
			event.CouponCode = *header.CouponCode
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuotationCreated,
			AggregateType: enums.AggregateQuotation,
			AggregateID:   quotationID,
			Actor:         &outbox.ActorRef{CustomerID: input.CustomerID, Channel: "web"},
			Data:          event,
			OccurredAt:    now,
		})
	})

	if err != nil {
		return s.finish(ctx, err)
	}

	result.Success = true
	s.metrics.RecordDocumentWrite(document, metrics.OutcomeOK)
	s.logg.Info(s.logg.WithFields(s.logg.WithDocumentNumber(ctx, result.QuotationNumber), map[string]any{
		"quotation_id": quotationID.String(),
		"item_count":   result.ItemCount,
		"total_amount": result.TotalAmount,
	}), "quotation created")
	return result, nil
}

func (s *Service) finish(ctx context.Context, err error) (CreateResult, error) {
	var rej *rejection
	switch {
	case errors.As(err, &rej):
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeRejected)
		return failed(rej.code, rej.message), nil
	case errors.Is(err, db.ErrTxBegin), errors.Is(err, numbering.ErrNumbersExhausted):
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeError)
		s.logg.Error(ctx, "quotation write aborted", err)
		return CreateResult{}, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeError)
		return CreateResult{}, err
	default:
		s.metrics.RecordDocumentWrite(document, metrics.OutcomeError)
		s.logg.Error(s.logg.WithField(ctx, "diagnostic", pkgerrors.Dump(err)), "quotation write rolled back", err)
		return failed(pkgerrors.CodeInternal, msgWriteFailure), nil
	}
}

func validateInput(input CreateInput) string {
	if len(input.Items) == 0 {
		return msgNoItems
	}
	if input.CustomerID == nil && (strings.TrimSpace(input.Contact.Name) == "" || strings.TrimSpace(input.Contact.Email) == "") {
		return msgContact
	}
	if strings.TrimSpace(input.RateTableVersion) == "" {
		return msgRateVersion
	}
	for _, item := range input.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			return msgInvalidItem
		}
		if item.Specification.Validate() != nil || item.Breakdown.Validate() != nil {
			return msgInvalidItem
		}
	}
	return ""
}

// taxOn applies percent to amount, rounding half up to whole yen.
func taxOn(amount int64, percent int) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func buildHeader(id uuid.UUID, input CreateInput, totals CreateResult, validUntil time.Time) *models.Quotation {
	header := &models.Quotation{
		ID:               id,
		CustomerID:       input.CustomerID,
		Status:           enums.QuotationStatusDraft,
		Currency:         "JPY",
		SubtotalAmount:   totals.SubtotalAmount,
		DiscountAmount:   totals.DiscountAmount,
		TaxAmount:        totals.TaxAmount,
		TotalAmount:      totals.TotalAmount,
		RateTableVersion: strings.TrimSpace(input.RateTableVersion),
		ValidUntil:       validUntil,
	}
	header.GuestName = optional(input.Contact.Name)
	header.GuestEmail = optional(input.Contact.Email)
	header.GuestPhone = optional(input.Contact.Phone)
	header.CompanyName = optional(input.Contact.CompanyName)
	header.Notes = optional(input.Notes)
	return header
}

func buildItems(quotationID uuid.UUID, inputs []ItemInput) ([]models.QuotationItem, error) {
	items := make([]models.QuotationItem, 0, len(inputs))
	for i, in := range inputs {
		spec, err := dbtypes.NewJSONB(in.Specification.Normalized())
		if err != nil {
			return nil, fmt.Errorf("encode specification: %w", err)
		}
		breakdown, err := dbtypes.NewJSONB(in.Breakdown)
		if err != nil {
			return nil, fmt.Errorf("encode breakdown: %w", err)
		}
		items = append(items, models.QuotationItem{
			ID:            uuid.New(),
			QuotationID:   quotationID,
			LineNumber:    i + 1,
			ProductName:   strings.TrimSpace(in.ProductName),
			Specification: spec,
			Breakdown:     breakdown,
			Quantity:      in.Breakdown.Quantity,
			UnitPrice:     in.Breakdown.UnitPrice,
			TotalPrice:    in.Breakdown.TotalCost,
		})
	}
	return items, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
