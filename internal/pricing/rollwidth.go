package pricing

import (
	"errors"
	"fmt"
	"sort"

	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// ErrNoRollWidthFits is returned when a product is wider than every roll the
// mill supplies.
var ErrNoRollWidthFits = errors.New("no roll width fits")

// RollWidthTable lists the standard stock roll widths in millimetres, strictly
// increasing.
type RollWidthTable []int

// NewRollWidthTable sorts and deduplicates widths into a table.
func NewRollWidthTable(widths ...int) (RollWidthTable, error) {
	sorted := append([]int(nil), widths...)
	sort.Ints(sorted)
	table := make(RollWidthTable, 0, len(sorted))
	for _, w := range sorted {
		if len(table) > 0 && table[len(table)-1] == w {
			continue
		}
		table = append(table, w)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate enforces a non-empty, positive, strictly increasing table.
func (t RollWidthTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("roll width table must have at least one entry")
	}
	for i, w := range t {
		if w <= 0 {
			return fmt.Errorf("roll width %d must be positive", w)
		}
		if i > 0 && t[i-1] >= w {
			return fmt.Errorf("roll widths must be strictly increasing (%d then %d)", t[i-1], w)
		}
	}
	return nil
}

// Largest returns the widest roll in the table.
func (t RollWidthTable) Largest() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1]
}

// SelectRollWidth returns the smallest roll width that can host netWidthMm.
func SelectRollWidth(netWidthMm int, table RollWidthTable) (int, error) {
	if len(table) == 0 {
		return 0, fmt.Errorf("roll width table is empty")
	}
	idx := sort.SearchInts(table, netWidthMm)
	if idx == len(table) {
		return 0, pkgerrors.Wrap(
			pkgerrors.CodeNoRollWidthFits,
			ErrNoRollWidthFits,
			fmt.Sprintf("width %dmm exceeds the largest roll width %dmm", netWidthMm, table.Largest()),
		).WithDetails(map[string]any{
			"requestedWidthMm": netWidthMm,
			"largestRollMm":    table.Largest(),
		})
	}
	return table[idx], nil
}
