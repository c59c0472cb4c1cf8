package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	micronsToMeters = decimal.New(1, -6)
	mmToMeters      = decimal.New(1, -3)
	hundred         = decimal.NewFromInt(100)
)

// roundYen rounds half-up to a whole yen. Inputs are never negative, so
// decimal's half-away-from-zero rounding is half-up here.
func roundYen(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}

// percentOf applies a percentage without rounding.
func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

// ceilDiv divides and rounds up to a whole number without intermediate loss.
func ceilDiv(numerator, denominator decimal.Decimal) decimal.Decimal {
	q, r := numerator.QuoRem(denominator, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
