package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packquote-backend/api/responses"
	"github.com/angelmondragon/packquote-backend/api/validators"
	"github.com/angelmondragon/packquote-backend/internal/pricing"
	"github.com/angelmondragon/packquote-backend/internal/quotations"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type quotationService interface {
	Create(ctx context.Context, input quotations.CreateInput) (quotations.CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Quotation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next enums.QuotationStatus) (*models.Quotation, error)
	SetPDFURL(ctx context.Context, id uuid.UUID, url string) error
}

type contactPayload struct {
	Name        string `json:"name" validate:"max=200"`
	Email       string `json:"email" validate:"omitempty,email,max=320"`
	Phone       string `json:"phone" validate:"omitempty,phone,max=40"`
	CompanyName string `json:"companyName" validate:"max=200"`
}

type quotationItemPayload struct {
	ProductName   string                       `json:"productName" validate:"max=200"`
	Specification pricing.ProductSpecification `json:"spec"`
	Breakdown     pricing.CostBreakdown        `json:"breakdown"`
}

type createQuotationRequest struct {
	CustomerID       *uuid.UUID             `json:"customerId"`
	Contact          contactPayload         `json:"contact"`
	Items            []quotationItemPayload `json:"items" validate:"max=50,dive"`
	CouponCode       string                 `json:"couponCode" validate:"max=64"`
	RateTableVersion string                 `json:"rateTableVersion" validate:"max=64"`
	Notes            string                 `json:"notes" validate:"max=2000"`
}

type createQuotationResponse struct {
	Success         bool       `json:"success"`
	QuotationID     *uuid.UUID `json:"quotationId,omitempty"`
	QuotationNumber string     `json:"quotationNumber,omitempty"`
	ItemCount       int        `json:"itemCount,omitempty"`
	SubtotalAmount  int64      `json:"subtotalAmount,omitempty"`
	DiscountAmount  int64      `json:"discountAmount,omitempty"`
	TaxAmount       int64      `json:"taxAmount,omitempty"`
	TotalAmount     int64      `json:"totalAmount,omitempty"`
	ErrorCode       string     `json:"errorCode,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}

type quotationItemView struct {
	LineNumber    int             `json:"lineNumber"`
	ProductName   string          `json:"productName"`
	Specification dbtypes.JSONB   `json:"spec"`
	Breakdown     dbtypes.JSONB   `json:"breakdown"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalPrice    int64           `json:"totalPrice"`
}

type quotationView struct {
	ID               uuid.UUID             `json:"id"`
	QuotationNumber  string                `json:"quotationNumber"`
	CustomerID       *uuid.UUID            `json:"customerId,omitempty"`
	GuestName        *string               `json:"guestName,omitempty"`
	GuestEmail       *string               `json:"guestEmail,omitempty"`
	GuestPhone       *string               `json:"guestPhone,omitempty"`
	CompanyName      *string               `json:"companyName,omitempty"`
	Status           enums.QuotationStatus `json:"status"`
	Currency         string                `json:"currency"`
	SubtotalAmount   int64                 `json:"subtotalAmount"`
	DiscountAmount   int64                 `json:"discountAmount"`
	TaxAmount        int64                 `json:"taxAmount"`
	TotalAmount      int64                 `json:"totalAmount"`
	CouponCode       *string               `json:"couponCode,omitempty"`
	RateTableVersion string                `json:"rateTableVersion"`
	Notes            *string               `json:"notes,omitempty"`
	ValidUntil       time.Time             `json:"validUntil"`
	PDFURL           *string               `json:"pdfUrl,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	Items            []quotationItemView   `json:"items"`
}

func newQuotationView(q *models.Quotation) quotationView {
	view := quotationView{
		ID:               q.ID,
		QuotationNumber:  q.QuotationNumber,
		CustomerID:       q.CustomerID,
		GuestName:        q.GuestName,
		GuestEmail:       q.GuestEmail,
		GuestPhone:       q.GuestPhone,
		CompanyName:      q.CompanyName,
		Status:           q.Status,
		Currency:         q.Currency,
		SubtotalAmount:   q.SubtotalAmount,
		DiscountAmount:   q.DiscountAmount,
		TaxAmount:        q.TaxAmount,
		TotalAmount:      q.TotalAmount,
		CouponCode:       q.CouponCode,
		RateTableVersion: q.RateTableVersion,
		Notes:            q.Notes,
		ValidUntil:       q.ValidUntil,
		PDFURL:           q.PDFURL,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
		Items:            make([]quotationItemView, 0, len(q.Items)),
	}
	for _, item := range q.Items {
		view.Items = append(view.Items, quotationItemView{
			LineNumber:    item.LineNumber,
			ProductName:   item.ProductName,
			Specification: item.Specification,
			Breakdown:     item.Breakdown,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			TotalPrice:    item.TotalPrice,
		})
	}
	return view
}

// QuotationCreate persists accepted tiers as a quotation. Business rejections
// come back as 422 with a customer-facing message.
func QuotationCreate(svc quotationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quotation service unavailable"))
			return
		}

		var body createQuotationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		customerID, err := customerFrom(ctx, body.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := quotations.CreateInput{
			CustomerID: customerID,
			Contact: quotations.Contact{
				Name:        validators.SanitizeString(body.Contact.Name, 200),
				Email:       validators.SanitizeString(body.Contact.Email, 320),
				Phone:       validators.SanitizeString(body.Contact.Phone, 40),
				CompanyName: validators.SanitizeString(body.Contact.CompanyName, 200),
			},
			CouponCode:       body.CouponCode,
			RateTableVersion: validators.SanitizeString(body.RateTableVersion, 64),
			Notes:            validators.SanitizeString(body.Notes, 2000),
			Items:            make([]quotations.ItemInput, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, quotations.ItemInput{
				ProductName:   validators.SanitizeString(item.ProductName, 200),
				Specification: item.Specification,
				Breakdown:     item.Breakdown,
			})
		}

		result, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !result.Success {
			responses.WriteSuccessStatus(w, http.StatusUnprocessableEntity, createQuotationResponse{
				ErrorCode:    string(result.ErrorCode),
				ErrorMessage: result.ErrorMessage,
			})
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createQuotationResponse{
			Success:         true,
			QuotationID:     &result.QuotationID,
			QuotationNumber: result.QuotationNumber,
			ItemCount:       result.ItemCount,
			SubtotalAmount:  result.SubtotalAmount,
			DiscountAmount:  result.DiscountAmount,
			TaxAmount:       result.TaxAmount,
			TotalAmount:     result.TotalAmount,
		})
	}
}

// QuotationGet returns a quotation with its items.
func QuotationGet(svc quotationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "quotationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		quotation, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuotationView(quotation))
	}
}

type updateQuotationStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// QuotationUpdateStatus moves a quotation through its lifecycle.
func QuotationUpdateStatus(svc quotationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "quotationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body updateQuotationStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		next, err := enums.ParseQuotationStatus(body.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]string{"status": err.Error()}))
			return
		}

		quotation, err := svc.UpdateStatus(ctx, id, next)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuotationView(quotation))
	}
}

type setQuotationPDFRequest struct {
	URL string `json:"url" validate:"required,url,max=2048"`
}

// QuotationSetPDF records where the rendered document lives.
func QuotationSetPDF(svc quotationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "quotationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body setQuotationPDFRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.SetPDFURL(ctx, id, body.URL); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"pdfUrl": body.URL})
	}
}
