package enums

import "fmt"

// SampleRequestStatus tracks fulfilment of a sample request.
type SampleRequestStatus string

const (
	SampleStatusReceived   SampleRequestStatus = "received"
	SampleStatusProcessing SampleRequestStatus = "processing"
	SampleStatusShipped    SampleRequestStatus = "shipped"
	SampleStatusDelivered  SampleRequestStatus = "delivered"
	SampleStatusCancelled  SampleRequestStatus = "cancelled"
)

var validSampleRequestStatuses = []SampleRequestStatus{
	SampleStatusReceived,
	SampleStatusProcessing,
	SampleStatusShipped,
	SampleStatusDelivered,
	SampleStatusCancelled,
}

// String implements fmt.Stringer.
func (v SampleRequestStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known SampleRequestStatus.
func (v SampleRequestStatus) IsValid() bool {
	for _, candidate := range validSampleRequestStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseSampleRequestStatus converts raw input into a SampleRequestStatus.
func ParseSampleRequestStatus(value string) (SampleRequestStatus, error) {
	for _, candidate := range validSampleRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sample request status %q", value)
}
