package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// BuiltinRatesVersion identifies the rate table compiled into the binary.
const BuiltinRatesVersion = "builtin-2024-01"

// Rates is one version of the manufacturing rate table. All amounts are in yen.
type Rates struct {
	Version    string         `json:"version"`
	RollWidths RollWidthTable `json:"rollWidths"`
	// EdgeTrimMm is the total width trimmed off a printed pouch web.
	EdgeTrimMm int `json:"edgeTrimMm"`

	SetupAllowanceMeters decimal.Decimal `json:"setupAllowanceMeters"`
	MinimumSecuredMeters decimal.Decimal `json:"minimumSecuredMeters"`
	MeterRoundingStep    decimal.Decimal `json:"meterRoundingStep"`

	PrintingPerM2          decimal.Decimal `json:"printingPerM2"`
	FullCoverageMultiplier decimal.Decimal `json:"fullCoverageMultiplier"`
	LaminationPerM2PerPass decimal.Decimal `json:"laminationPerM2PerPass"`
	SlitterPerMeter        decimal.Decimal `json:"slitterPerMeter"`
	SlitterMinimumFee      decimal.Decimal `json:"slitterMinimumFee"`

	PostProcessingFees map[enums.PostProcessingOption]decimal.Decimal `json:"postProcessingFees"`

	DutyPercent      decimal.Decimal `json:"dutyPercent"`
	DeliveryPerBox   decimal.Decimal `json:"deliveryPerBox"`
	DeliveryKgPerBox decimal.Decimal `json:"deliveryKgPerBox"`
}

// DefaultRates returns the built-in rate table.
func DefaultRates() Rates {
	return Rates{
		Version:                BuiltinRatesVersion,
		RollWidths:             RollWidthTable{590, 760},
		EdgeTrimMm:             20,
		SetupAllowanceMeters:   decimal.NewFromInt(400),
		MinimumSecuredMeters:   decimal.NewFromInt(500),
		MeterRoundingStep:      decimal.NewFromInt(50),
		PrintingPerM2:          decimal.NewFromInt(57),
		FullCoverageMultiplier: decimal.RequireFromString("1.5"),
		LaminationPerM2PerPass: decimal.NewFromInt(9),
		SlitterPerMeter:        decimal.RequireFromString("1.2"),
		SlitterMinimumFee:      decimal.NewFromInt(3600),
		PostProcessingFees: map[enums.PostProcessingOption]decimal.Decimal{
			enums.PostProcessingZipper:   decimal.NewFromInt(10),
			enums.PostProcessingValve:    decimal.NewFromInt(15),
			enums.PostProcessingHangHole: decimal.RequireFromString("4.6"),
		},
		DutyPercent:      decimal.NewFromInt(5),
		DeliveryPerBox:   decimal.NewFromInt(15358),
		DeliveryKgPerBox: decimal.NewFromInt(29),
	}
}

// Validate reports every problem with the table at once.
func (r Rates) Validate() error {
	var errs error
	if r.Version == "" {
		errs = multierr.Append(errs, fmt.Errorf("version is required"))
	}
	if err := r.RollWidths.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if r.EdgeTrimMm < 0 {
		errs = multierr.Append(errs, fmt.Errorf("edgeTrimMm must be >= 0"))
	}
	nonNegative := map[string]decimal.Decimal{
		"setupAllowanceMeters":   r.SetupAllowanceMeters,
		"minimumSecuredMeters":   r.MinimumSecuredMeters,
		"printingPerM2":          r.PrintingPerM2,
		"laminationPerM2PerPass": r.LaminationPerM2PerPass,
		"slitterPerMeter":        r.SlitterPerMeter,
		"slitterMinimumFee":      r.SlitterMinimumFee,
		"dutyPercent":            r.DutyPercent,
		"deliveryPerBox":         r.DeliveryPerBox,
	}
	for _, name := range sortedKeys(nonNegative) {
		if nonNegative[name].IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("%s must be >= 0", name))
		}
	}
	if !r.MeterRoundingStep.IsPositive() {
		errs = multierr.Append(errs, fmt.Errorf("meterRoundingStep must be > 0"))
	}
	if !r.DeliveryKgPerBox.IsPositive() {
		errs = multierr.Append(errs, fmt.Errorf("deliveryKgPerBox must be > 0"))
	}
	if r.FullCoverageMultiplier.LessThan(decimal.NewFromInt(1)) {
		errs = multierr.Append(errs, fmt.Errorf("fullCoverageMultiplier must be >= 1"))
	}
	for option, fee := range r.PostProcessingFees {
		if !option.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("unknown post-processing option %q", option))
			continue
		}
		if fee.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("post-processing fee for %s must be >= 0", option))
		}
	}
	return errs
}

func (r Rates) postProcessingFee(option enums.PostProcessingOption) decimal.Decimal {
	if fee, ok := r.PostProcessingFees[option]; ok {
		return fee
	}
	return decimal.Zero
}
