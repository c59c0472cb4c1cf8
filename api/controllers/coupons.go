package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/api/middleware"
	"github.com/angelmondragon/packquote-backend/api/responses"
	"github.com/angelmondragon/packquote-backend/api/validators"
	"github.com/angelmondragon/packquote-backend/internal/coupons"
	"github.com/angelmondragon/packquote-backend/internal/quotations"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type couponChecker interface {
	Evaluate(ctx context.Context, code string, orderAmount int64, customerID *uuid.UUID) (coupons.Evaluation, error)
}

type validateCouponRequest struct {
	Code        string     `json:"code" validate:"required,max=64"`
	OrderAmount int64      `json:"orderAmount" validate:"gte=0"`
	CustomerID  *uuid.UUID `json:"customerId"`
}

type validateCouponResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code,omitempty"`
	DiscountAmount *int64 `json:"discountAmount,omitempty"`
	FinalAmount    *int64 `json:"finalAmount,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Message        string `json:"message,omitempty"`
}

// CouponValidate checks a code against an order amount. A rejected coupon is
// a 200 with valid=false.
func CouponValidate(svc couponChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var body validateCouponRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		customerID, err := customerFrom(ctx, body.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		code := validators.SanitizeCode(body.Code, 64)
		eval, err := svc.Evaluate(ctx, code, body.OrderAmount, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := validateCouponResponse{Valid: eval.Valid, Code: code}
		if eval.Valid {
			resp.DiscountAmount = &eval.DiscountAmount
			resp.FinalAmount = &eval.FinalAmount
		} else {
			resp.Reason = string(eval.Reason)
			resp.Message = quotations.CouponMessage(eval.Reason)
		}
		responses.WriteSuccess(w, resp)
	}
}

// customerFrom prefers an explicit body value over the gateway header.
func customerFrom(ctx context.Context, explicit *uuid.UUID) (*uuid.UUID, error) {
	if explicit != nil && *explicit != uuid.Nil {
		return explicit, nil
	}
	raw := middleware.CustomerIDFromContext(ctx)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
	}
	return &id, nil
}
