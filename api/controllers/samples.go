package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/api/responses"
	"github.com/angelmondragon/packquote-backend/api/validators"
	"github.com/angelmondragon/packquote-backend/internal/samples"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type sampleRequestService interface {
	Create(ctx context.Context, input samples.CreateInput) (samples.CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SampleRequest, error)
}

type sampleItemPayload struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName" validate:"max=200"`
	Quantity    int       `json:"quantity"`
}

// Item count and quantity rules live in the service so that their messages
// stay customer-facing.
type createSampleRequestRequest struct {
	CustomerID      *uuid.UUID          `json:"customerId"`
	ContactName     string              `json:"contactName" validate:"max=200"`
	ContactEmail    string              `json:"contactEmail" validate:"omitempty,email,max=320"`
	ContactPhone    string              `json:"contactPhone" validate:"omitempty,phone,max=40"`
	CompanyName     string              `json:"companyName" validate:"max=200"`
	ShippingAddress string              `json:"shippingAddress" validate:"max=500"`
	Notes           string              `json:"notes" validate:"max=2000"`
	Items           []sampleItemPayload `json:"items" validate:"max=20,dive"`
}

type createSampleRequestResponse struct {
	Success         bool       `json:"success"`
	SampleRequestID *uuid.UUID `json:"sampleRequestId,omitempty"`
	RequestNumber   string     `json:"requestNumber,omitempty"`
	ItemsCreated    int        `json:"itemsCreated,omitempty"`
	ErrorCode       string     `json:"errorCode,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}

type sampleItemView struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
}

type sampleRequestView struct {
	ID              uuid.UUID                 `json:"id"`
	RequestNumber   string                    `json:"requestNumber"`
	CustomerID      *uuid.UUID                `json:"customerId,omitempty"`
	ContactName     *string                   `json:"contactName,omitempty"`
	ContactEmail    *string                   `json:"contactEmail,omitempty"`
	ContactPhone    *string                   `json:"contactPhone,omitempty"`
	CompanyName     *string                   `json:"companyName,omitempty"`
	ShippingAddress string                    `json:"shippingAddress"`
	Status          enums.SampleRequestStatus `json:"status"`
	TrackingNumber  *string                   `json:"trackingNumber,omitempty"`
	Notes           *string                   `json:"notes,omitempty"`
	CreatedAt       time.Time                 `json:"createdAt"`
	Items           []sampleItemView          `json:"items"`
}

func newSampleRequestView(req *models.SampleRequest) sampleRequestView {
	view := sampleRequestView{
		ID:              req.ID,
		RequestNumber:   req.RequestNumber,
		CustomerID:      req.CustomerID,
		ContactName:     req.ContactName,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
		CompanyName:     req.CompanyName,
		ShippingAddress: req.ShippingAddress,
		Status:          req.Status,
		TrackingNumber:  req.TrackingNumber,
		Notes:           req.Notes,
		CreatedAt:       req.CreatedAt,
		Items:           make([]sampleItemView, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		view.Items = append(view.Items, sampleItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
		})
	}
	return view
}

// SampleRequestCreate records a free sample request of one to five items.
func SampleRequestCreate(svc sampleRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sample request service unavailable"))
			return
		}

		var body createSampleRequestRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		customerID, err := customerFrom(ctx, body.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := samples.CreateInput{
			CustomerID:      customerID,
			ContactName:     validators.SanitizeString(body.ContactName, 200),
			ContactEmail:    validators.SanitizeString(body.ContactEmail, 320),
			ContactPhone:    validators.SanitizeString(body.ContactPhone, 40),
			CompanyName:     validators.SanitizeString(body.CompanyName, 200),
			ShippingAddress: validators.SanitizeString(body.ShippingAddress, 500),
			Notes:           validators.SanitizeString(body.Notes, 2000),
			Items:           make([]samples.ItemInput, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, samples.ItemInput{
				ProductID:   item.ProductID,
				ProductName: validators.SanitizeString(item.ProductName, 200),
				Quantity:    item.Quantity,
			})
		}

		result, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !result.Success {
			responses.WriteSuccessStatus(w, http.StatusUnprocessableEntity, createSampleRequestResponse{
				ErrorCode:    string(result.ErrorCode),
				ErrorMessage: result.ErrorMessage,
			})
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createSampleRequestResponse{
			Success:         true,
			SampleRequestID: &result.SampleRequestID,
			RequestNumber:   result.RequestNumber,
			ItemsCreated:    result.ItemsCreated,
		})
	}
}

func SampleRequestGet(svc sampleRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, "sampleRequestId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		req, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSampleRequestView(req))
	}
}
