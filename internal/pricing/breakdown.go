package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// CostBreakdown is the priced result for one quantity tier. Money fields are
// whole yen; UnitPrice keeps two decimal places.
type CostBreakdown struct {
	Quantity       int64           `json:"quantity"`
	RollWidthMm    int             `json:"rollWidthMm"`
	WebWidthMm     int             `json:"webWidthMm"`
	Columns        int             `json:"columns"`
	RunMeters      decimal.Decimal `json:"runMeters"`
	MaterialMassKg decimal.Decimal `json:"materialMassKg"`

	MaterialCost       int64 `json:"materialCost"`
	PrintingCost       int64 `json:"printingCost"`
	LaminationCost     int64 `json:"laminationCost"`
	SlitterCost        int64 `json:"slitterCost"`
	PostProcessingCost int64 `json:"postProcessingCost"`
	Subtotal           int64 `json:"subtotal"`
	Duty               int64 `json:"duty"`
	Delivery           int64 `json:"delivery"`
	TotalCost          int64 `json:"totalCost"`

	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// UnitPriceFor divides total by quantity, rounding half-up to two places.
func UnitPriceFor(total, quantity int64) decimal.Decimal {
	return decimal.NewFromInt(total).DivRound(decimal.NewFromInt(quantity), 2)
}

// Validate checks that a breakdown is internally coherent. It is used to
// re-check client-submitted tiers before they are persisted.
func (b CostBreakdown) Validate() error {
	details := map[string]string{}
	if b.Quantity <= 0 {
		details["quantity"] = "must be greater than 0"
	}
	amounts := map[string]int64{
		"materialCost":       b.MaterialCost,
		"printingCost":       b.PrintingCost,
		"laminationCost":     b.LaminationCost,
		"slitterCost":        b.SlitterCost,
		"postProcessingCost": b.PostProcessingCost,
		"subtotal":           b.Subtotal,
		"duty":               b.Duty,
		"delivery":           b.Delivery,
		"totalCost":          b.TotalCost,
	}
	for _, name := range sortedKeys(amounts) {
		if amounts[name] < 0 {
			details[name] = "must not be negative"
		}
	}
	sum := b.MaterialCost + b.PrintingCost + b.LaminationCost + b.SlitterCost + b.PostProcessingCost
	if sum != b.Subtotal {
		details["subtotal"] = fmt.Sprintf("expected %d, the sum of cost components", sum)
	}
	if b.Subtotal+b.Duty+b.Delivery != b.TotalCost {
		details["totalCost"] = fmt.Sprintf("expected %d, subtotal + duty + delivery", b.Subtotal+b.Duty+b.Delivery)
	}
	if b.Quantity > 0 && !b.UnitPrice.Equal(UnitPriceFor(b.TotalCost, b.Quantity)) {
		details["unitPrice"] = fmt.Sprintf("expected %s", UnitPriceFor(b.TotalCost, b.Quantity).StringFixed(2))
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "inconsistent cost breakdown").WithDetails(details)
	}
	return nil
}
