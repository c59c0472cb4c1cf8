package pricing

import "github.com/shopspring/decimal"

// MaterialResult is the unrounded material consumption of one run.
type MaterialResult struct {
	MassKg decimal.Decimal
	Cost   decimal.Decimal
}

// MaterialCost computes volume, then mass, then cost for every layer over the
// full roll width and run length, and sums the layers. runMeters must already
// include the setup allowance.
func MaterialCost(structure MaterialStructure, rollWidthMm int, runMeters decimal.Decimal) MaterialResult {
	width := decimal.NewFromInt(int64(rollWidthMm)).Mul(mmToMeters)
	result := MaterialResult{MassKg: decimal.Zero, Cost: decimal.Zero}
	for _, layer := range structure {
		volume := layer.ThicknessMicrons.Mul(micronsToMeters).Mul(width).Mul(runMeters)
		mass := volume.Mul(layer.DensityKgPerM3)
		result.MassKg = result.MassKg.Add(mass)
		result.Cost = result.Cost.Add(mass.Mul(layer.PricePerKg))
	}
	return result
}
