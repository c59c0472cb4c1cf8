package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// PrintingCost charges the printable image area. webWidthMm is the laid-out
// web (Layout.WebWidthMm), not the net product width, so a two-column pouch
// is charged on 4H+71. Unprinted film costs nothing; full coverage is
// charged at the configured multiplier.
func PrintingCost(webWidthMm int, runMeters decimal.Decimal, coverage enums.InkCoverage, rates Rates) decimal.Decimal {
	if coverage == enums.InkCoverageNone {
		return decimal.Zero
	}
	cost := area(webWidthMm, runMeters).Mul(rates.PrintingPerM2)
	if coverage == enums.InkCoverageFull {
		cost = cost.Mul(rates.FullCoverageMultiplier)
	}
	return cost
}

// LaminationCost charges one bonding pass per adjoining layer pair over the
// same web width as PrintingCost.
func LaminationCost(webWidthMm int, runMeters decimal.Decimal, layerCount int, rates Rates) decimal.Decimal {
	passes := layerCount - 1
	if passes <= 0 {
		return decimal.Zero
	}
	return area(webWidthMm, runMeters).
		Mul(rates.LaminationPerM2PerPass).
		Mul(decimal.NewFromInt(int64(passes)))
}

// SlitterCost is the per-meter slitting charge, floored at the setup fee.
func SlitterCost(runMeters decimal.Decimal, rates Rates) decimal.Decimal {
	return decimal.Max(rates.SlitterMinimumFee, runMeters.Mul(rates.SlitterPerMeter))
}

// PostProcessingCost sums per-unit finishing fees. Roll film has no discrete
// units, so it is never charged.
func PostProcessingCost(class enums.ProductClass, options []enums.PostProcessingOption, units int64, rates Rates) decimal.Decimal {
	if !class.IsPouch() || units <= 0 {
		return decimal.Zero
	}
	perUnit := decimal.Zero
	for _, opt := range options {
		perUnit = perUnit.Add(rates.postProcessingFee(opt))
	}
	return perUnit.Mul(decimal.NewFromInt(units))
}

func area(widthMm int, runMeters decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(widthMm)).Mul(mmToMeters).Mul(runMeters)
}
