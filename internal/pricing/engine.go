// Package pricing turns a product specification and a set of candidate
// quantities into priced tiers. Everything here is pure: the same inputs always
// produce the same breakdowns.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// Observer receives timing for each Price call.
type Observer interface {
	ObservePricing(class string, tiers int, duration time.Duration, err error)
}

type Options struct {
	// MaxTiers caps the number of distinct quantities per call. Zero means no cap.
	MaxTiers int
	Observer Observer
}

type Engine struct {
	maxTiers int
	observer Observer
}

func NewEngine(opts Options) *Engine {
	return &Engine{maxTiers: opts.MaxTiers, observer: opts.Observer}
}

// Price computes one breakdown per distinct quantity, in ascending quantity
// order. Tiers share no state and are priced concurrently.
func (e *Engine) Price(ctx context.Context, spec ProductSpecification, quantities []int64, rates Rates) (tiers []CostBreakdown, err error) {
	start := time.Now()
	defer func() {
		if e.observer != nil {
			e.observer.ObservePricing(spec.Class.String(), len(tiers), time.Since(start), err)
		}
	}()

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := rates.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rate table is invalid")
	}
	qs, err := NormalizeQuantities(quantities, e.maxTiers)
	if err != nil {
		return nil, err
	}

	spec = spec.Normalized()
	layout := PlanLayout(spec, rates)

	out := make([]CostBreakdown, len(qs))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range qs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tier, err := PriceTier(spec, layout, q, rates)
			if err != nil {
				return err
			}
			out[i] = tier
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PriceTier prices a single quantity. spec must be normalized and layout must
// come from PlanLayout for the same spec and rates.
func PriceTier(spec ProductSpecification, layout Layout, quantity int64, rates Rates) (CostBreakdown, error) {
	rollWidth, err := SelectRollWidth(layout.RequiredRollMm, rates.RollWidths)
	if err != nil {
		return CostBreakdown{}, err
	}
	run := RunMeters(spec.Class, layout, quantity, rates)

	material := MaterialCost(spec.Structure, rollWidth, run)
	b := CostBreakdown{
		Quantity:           quantity,
		RollWidthMm:        rollWidth,
		WebWidthMm:         layout.WebWidthMm,
		Columns:            layout.Columns,
		RunMeters:          run,
		MaterialMassKg:     material.MassKg.Round(3),
		MaterialCost:       roundYen(material.Cost),
		PrintingCost:       roundYen(PrintingCost(layout.WebWidthMm, run, spec.InkCoverage, rates)),
		LaminationCost:     roundYen(LaminationCost(layout.WebWidthMm, run, len(spec.Structure), rates)),
		SlitterCost:        roundYen(SlitterCost(run, rates)),
		PostProcessingCost: roundYen(PostProcessingCost(spec.Class, spec.PostProcessing, quantity, rates)),
	}
	b.Subtotal = b.MaterialCost + b.PrintingCost + b.LaminationCost + b.SlitterCost + b.PostProcessingCost
	b.Duty = roundYen(percentOf(decimal.NewFromInt(b.Subtotal), rates.DutyPercent))
	b.Delivery = roundYen(DeliveryCost(material.MassKg, rates))
	b.TotalCost = b.Subtotal + b.Duty + b.Delivery
	b.UnitPrice = UnitPriceFor(b.TotalCost, quantity)
	return b, nil
}

// DeliveryCost ships the film mass in boxes of DeliveryKgPerBox.
func DeliveryCost(massKg decimal.Decimal, rates Rates) decimal.Decimal {
	if !massKg.IsPositive() {
		return decimal.Zero
	}
	boxes := ceilDiv(massKg, rates.DeliveryKgPerBox)
	return boxes.Mul(rates.DeliveryPerBox)
}
