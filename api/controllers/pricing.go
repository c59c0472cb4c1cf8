package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packquote-backend/api/responses"
	"github.com/angelmondragon/packquote-backend/api/validators"
	"github.com/angelmondragon/packquote-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type rateResolver interface {
	Resolve(ctx context.Context, version string) (pricing.Rates, error)
}

type tierPricer interface {
	Price(ctx context.Context, spec pricing.ProductSpecification, quantities []int64, rates pricing.Rates) ([]pricing.CostBreakdown, error)
}

type priceQuoteRequest struct {
	Specification    pricing.ProductSpecification `json:"spec"`
	Quantities       []int64                      `json:"quantities" validate:"required,min=1,dive,gt=0"`
	RateTableVersion string                       `json:"rateTableVersion" validate:"max=64"`
}

type priceQuoteResponse struct {
	RateTableVersion string                  `json:"rateTableVersion"`
	Tiers            []pricing.CostBreakdown `json:"tiers"`
}

// PricingQuote prices a specification at every requested quantity.
func PricingQuote(resolver rateResolver, engine tierPricer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if resolver == nil || engine == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var body priceQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rates, err := resolver.Resolve(ctx, validators.SanitizeString(body.RateTableVersion, 64))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tiers, err := engine.Price(ctx, body.Specification, body.Quantities, rates)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, priceQuoteResponse{RateTableVersion: rates.Version, Tiers: tiers})
	}
}
