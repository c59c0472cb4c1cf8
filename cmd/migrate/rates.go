package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/angelmondragon/packquote-backend/internal/pricing"
)

// loadRates reads a rate table document. The built-in version is compiled in
// and cannot be imported over.
func loadRates(path string) (pricing.Rates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pricing.Rates{}, fmt.Errorf("read rate table: %w", err)
	}
	var table pricing.Rates
	if err := json.Unmarshal(raw, &table); err != nil {
		return pricing.Rates{}, fmt.Errorf("decode rate table: %w", err)
	}
	if table.Version == pricing.BuiltinRatesVersion {
		return pricing.Rates{}, fmt.Errorf("version %s is reserved for the built-in table", table.Version)
	}
	if err := table.Validate(); err != nil {
		return pricing.Rates{}, fmt.Errorf("invalid rate table %s: %w", table.Version, err)
	}
	return table, nil
}
