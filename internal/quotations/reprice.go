package quotations

import (
	"context"

	"github.com/angelmondragon/packquote-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

const (
	msgStalePrice      = "見積もり金額が料金表と一致しません。もう一度お見積もりください"
	msgUnknownRates    = "指定された料金表が見つかりません"
	msgNoRollWidthFits = "この寸法に対応できる原反幅がありません"
)

type rateResolver interface {
	Resolve(ctx context.Context, version string) (pricing.Rates, error)
}

type tierPricer interface {
	Price(ctx context.Context, spec pricing.ProductSpecification, quantities []int64, rates pricing.Rates) ([]pricing.CostBreakdown, error)
}

// checkPrices prices every item again against the quoted rate table and
// rejects the quotation when a submitted breakdown differs from the result.
// It is skipped when the service was built without a resolver or pricer.
func (s *Service) checkPrices(ctx context.Context, input CreateInput) error {
	if s.rates == nil || s.pricer == nil {
		return nil
	}
	rates, err := s.rates.Resolve(ctx, input.RateTableVersion)
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return &rejection{code: pkgerrors.CodeValidation, message: msgUnknownRates, cause: err}
	}
	if err != nil {
		return err
	}

	for i, item := range input.Items {
		tiers, err := s.pricer.Price(ctx, item.Specification, []int64{item.Breakdown.Quantity}, rates)
		switch {
		case pkgerrors.Is(err, pkgerrors.CodeNoRollWidthFits):
			return &rejection{code: pkgerrors.CodeNoRollWidthFits, message: msgNoRollWidthFits, cause: err}
		case pkgerrors.Is(err, pkgerrors.CodeValidation):
			return &rejection{code: pkgerrors.CodeValidation, message: msgInvalidItem, cause: err}
		case err != nil:
			return err
		}
		if len(tiers) != 1 || !samePrice(item.Breakdown, tiers[0]) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"item_index":         i,
				"rate_table_version": input.RateTableVersion,
				"submitted_total":    item.Breakdown.TotalCost,
			}), "submitted breakdown does not match current pricing")
			return &rejection{code: pkgerrors.CodeValidation, message: msgStalePrice}
		}
	}
	return nil
}

// samePrice compares the fields a customer is charged on.
func samePrice(submitted, priced pricing.CostBreakdown) bool {
	return submitted.Quantity == priced.Quantity &&
		submitted.MaterialCost == priced.MaterialCost &&
		submitted.PrintingCost == priced.PrintingCost &&
		submitted.LaminationCost == priced.LaminationCost &&
		submitted.SlitterCost == priced.SlitterCost &&
		submitted.PostProcessingCost == priced.PostProcessingCost &&
		submitted.Subtotal == priced.Subtotal &&
		submitted.Duty == priced.Duty &&
		submitted.Delivery == priced.Delivery &&
		submitted.TotalCost == priced.TotalCost &&
		submitted.UnitPrice.Equal(priced.UnitPrice)
}
