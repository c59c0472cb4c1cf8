package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// MaterialLayer is one film in a laminate.
type MaterialLayer struct {
	Name             string          `json:"name"`
	ThicknessMicrons decimal.Decimal `json:"thicknessMicrons"`
	DensityKgPerM3   decimal.Decimal `json:"densityKgPerM3"`
	PricePerKg       decimal.Decimal `json:"pricePerKg"`
}

// MaterialStructure is the ordered layer stack, outermost first.
type MaterialStructure []MaterialLayer

// LaminationPasses is the number of bonding passes needed to join the layers.
func (s MaterialStructure) LaminationPasses() int {
	if len(s) < 2 {
		return 0
	}
	return len(s) - 1
}

// ProductSpecification describes what is being quoted. NetHeightMm and
// GussetMm only apply to pouches; roll film quantities are requested in meters.
type ProductSpecification struct {
	Class          enums.ProductClass           `json:"class"`
	NetWidthMm     int                          `json:"netWidthMm"`
	NetHeightMm    int                          `json:"netHeightMm,omitempty"`
	GussetMm       int                          `json:"gussetMm,omitempty"`
	Structure      MaterialStructure            `json:"structure"`
	PostProcessing []enums.PostProcessingOption `json:"postProcessing,omitempty"`
	InkCoverage    enums.InkCoverage            `json:"inkCoverage"`
}

// Normalized returns a copy with defaults applied and options deduplicated
// in a stable order.
func (s ProductSpecification) Normalized() ProductSpecification {
	out := s
	if out.InkCoverage == "" {
		out.InkCoverage = enums.InkCoverageStandard
	}
	out.Structure = append(MaterialStructure(nil), s.Structure...)
	if len(s.PostProcessing) > 0 {
		seen := make(map[enums.PostProcessingOption]struct{}, len(s.PostProcessing))
		opts := make([]enums.PostProcessingOption, 0, len(s.PostProcessing))
		for _, opt := range s.PostProcessing {
			if _, ok := seen[opt]; ok {
				continue
			}
			seen[opt] = struct{}{}
			opts = append(opts, opt)
		}
		sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })
		out.PostProcessing = opts
	}
	return out
}

// Validate returns a validation error listing every offending field.
func (s ProductSpecification) Validate() error {
	details := map[string]string{}

	if !s.Class.IsValid() {
		details["class"] = fmt.Sprintf("unknown product class %q", s.Class)
	}
	if s.NetWidthMm <= 0 {
		details["netWidthMm"] = "must be greater than 0"
	}
	if s.Class.IsPouch() && s.NetHeightMm <= 0 {
		details["netHeightMm"] = "must be greater than 0 for pouches"
	}
	if s.GussetMm < 0 {
		details["gussetMm"] = "must not be negative"
	}
	if (s.Class == enums.ProductClassGussetedPouch || s.Class == enums.ProductClassBoxPouch) && s.GussetMm <= 0 {
		details["gussetMm"] = "must be greater than 0 for gusseted and box pouches"
	}
	if s.InkCoverage != "" && !s.InkCoverage.IsValid() {
		details["inkCoverage"] = fmt.Sprintf("unknown ink coverage %q", s.InkCoverage)
	}
	for i, opt := range s.PostProcessing {
		if !opt.IsValid() {
			details[fmt.Sprintf("postProcessing[%d]", i)] = fmt.Sprintf("unknown option %q", opt)
		}
	}

	if len(s.Structure) == 0 {
		details["structure"] = "at least one material layer is required"
	}
	for i, layer := range s.Structure {
		prefix := fmt.Sprintf("structure[%d]", i)
		if layer.Name == "" {
			details[prefix+".name"] = "is required"
		}
		if !layer.ThicknessMicrons.IsPositive() {
			details[prefix+".thicknessMicrons"] = "must be greater than 0"
		}
		if !layer.DensityKgPerM3.IsPositive() {
			details[prefix+".densityKgPerM3"] = "must be greater than 0"
		}
		if layer.PricePerKg.IsNegative() {
			details[prefix+".pricePerKg"] = "must not be negative"
		}
	}

	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product specification").WithDetails(details)
	}
	return nil
}

// NormalizeQuantities deduplicates and sorts the requested quantities.
// maxTiers <= 0 disables the tier limit.
func NormalizeQuantities(quantities []int64, maxTiers int) ([]int64, error) {
	if len(quantities) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one quantity is required").
			WithDetails(map[string]string{"quantities": "must not be empty"})
	}
	seen := make(map[int64]struct{}, len(quantities))
	out := make([]int64, 0, len(quantities))
	for i, q := range quantities {
		if q <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantities must be positive").
				WithDetails(map[string]string{fmt.Sprintf("quantities[%d]", i): "must be greater than 0"})
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	if maxTiers > 0 && len(out) > maxTiers {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many quantity tiers").
			WithDetails(map[string]string{"quantities": fmt.Sprintf("at most %d distinct quantities", maxTiers)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
