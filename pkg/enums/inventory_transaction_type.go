package enums

import "fmt"

// InventoryTransactionType labels a row in the inventory history.
type InventoryTransactionType string

const (
	InventoryTxReceipt       InventoryTransactionType = "receipt"
	InventoryTxIssue         InventoryTransactionType = "issue"
	InventoryTxAdjustment    InventoryTransactionType = "adjustment"
	InventoryTxReturn        InventoryTransactionType = "return"
	InventoryTxProductionIn  InventoryTransactionType = "production_in"
	InventoryTxProductionOut InventoryTransactionType = "production_out"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTxReceipt,
	InventoryTxIssue,
	InventoryTxAdjustment,
	InventoryTxReturn,
	InventoryTxProductionIn,
	InventoryTxProductionOut,
}

// String implements fmt.Stringer.
func (v InventoryTransactionType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known InventoryTransactionType.
func (v InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into a InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
