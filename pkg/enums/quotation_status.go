package enums

import "fmt"

// QuotationStatus tracks a quotation header after creation.
type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "draft"
	QuotationStatusSent      QuotationStatus = "sent"
	QuotationStatusApproved  QuotationStatus = "approved"
	QuotationStatusRejected  QuotationStatus = "rejected"
	QuotationStatusExpired   QuotationStatus = "expired"
	QuotationStatusConverted QuotationStatus = "converted"
)

var validQuotationStatuses = []QuotationStatus{
	QuotationStatusDraft,
	QuotationStatusSent,
	QuotationStatusApproved,
	QuotationStatusRejected,
	QuotationStatusExpired,
	QuotationStatusConverted,
}

// String implements fmt.Stringer.
func (v QuotationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known QuotationStatus.
func (v QuotationStatus) IsValid() bool {
	for _, candidate := range validQuotationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseQuotationStatus converts raw input into a QuotationStatus.
func ParseQuotationStatus(value string) (QuotationStatus, error) {
	for _, candidate := range validQuotationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quotation status %q", value)
}

var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:    {QuotationStatusSent, QuotationStatusExpired},
	QuotationStatusSent:     {QuotationStatusApproved, QuotationStatusRejected, QuotationStatusExpired},
	QuotationStatusApproved: {QuotationStatusConverted, QuotationStatusExpired},
}

// CanTransitionTo reports whether a header in status v may move to next.
// Rejected, expired and converted are terminal.
func (v QuotationStatus) CanTransitionTo(next QuotationStatus) bool {
	for _, candidate := range quotationTransitions[v] {
		if candidate == next {
			return true
		}
	}
	return false
}
