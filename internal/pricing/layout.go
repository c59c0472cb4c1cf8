package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// Layout is how a product is placed on the web.
type Layout struct {
	// WebWidthMm is the printed film width the product needs before it is
	// matched to a stock roll.
	WebWidthMm int
	// RequiredRollMm is the narrowest stock roll that can carry the web.
	// Printed pouch webs need the edge trim on top; roll film is slit straight
	// from stock.
	RequiredRollMm int
	// Columns is how many pouches sit side by side across the web.
	Columns int
	// PitchMm is the web length consumed per row of pouches. Zero for roll film.
	PitchMm int
}

// PlanLayout lays a pouch out one or two across the web. Two columns are only
// used when the doubled web plus edge trim still fits the widest roll.
func PlanLayout(spec ProductSpecification, rates Rates) Layout {
	h, w, g := spec.NetHeightMm, spec.NetWidthMm, spec.GussetMm
	trim := rates.EdgeTrimMm
	largest := rates.RollWidths.Largest()

	switch spec.Class {
	case enums.ProductClassFlatPouch:
		return pickColumns(2*h+41, 4*h+71, w, trim, largest)
	case enums.ProductClassStandUpPouch:
		return pickColumns(2*h+g+35, 4*h+2*g+40, w, trim, largest)
	case enums.ProductClassGussetedPouch, enums.ProductClassBoxPouch:
		web := 2*(g+w) + 32
		return Layout{WebWidthMm: web, RequiredRollMm: web + trim, Columns: 1, PitchMm: g + w}
	default:
		return Layout{WebWidthMm: spec.NetWidthMm, RequiredRollMm: spec.NetWidthMm, Columns: 1}
	}
}

func pickColumns(single, double, pitch, trim, largest int) Layout {
	if double+trim <= largest {
		return Layout{WebWidthMm: double, RequiredRollMm: double + trim, Columns: 2, PitchMm: pitch}
	}
	return Layout{WebWidthMm: single, RequiredRollMm: single + trim, Columns: 1, PitchMm: pitch}
}

// RunMeters returns the film length consumed for quantity, including the fixed
// setup allowance. Roll film quantities are meters. Pouch runs are rounded up
// to the meter step and never fall below the minimum secured length.
func RunMeters(class enums.ProductClass, layout Layout, quantity int64, rates Rates) decimal.Decimal {
	if !class.IsPouch() {
		return decimal.NewFromInt(quantity).Add(rates.SetupAllowanceMeters)
	}

	rowsMm := decimal.NewFromInt(quantity).Mul(decimal.NewFromInt(int64(layout.PitchMm)))
	perStepMm := decimal.NewFromInt(int64(1000 * layout.Columns)).Mul(rates.MeterRoundingStep)
	secured := ceilDiv(rowsMm, perStepMm).Mul(rates.MeterRoundingStep)
	secured = decimal.Max(secured, rates.MinimumSecuredMeters)
	return secured.Add(rates.SetupAllowanceMeters)
}
