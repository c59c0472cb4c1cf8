package enums

import "fmt"

// InkCoverage classifies how much of the printable image carries ink.
type InkCoverage string

const (
	InkCoverageNone     InkCoverage = "none"
	InkCoverageStandard InkCoverage = "standard"
	InkCoverageFull     InkCoverage = "full"
)

var validInkCoverages = []InkCoverage{
	InkCoverageNone,
	InkCoverageStandard,
	InkCoverageFull,
}

// String implements fmt.Stringer.
func (v InkCoverage) String() string {
	return string(v)
}

// IsValid reports whether the value is a known InkCoverage.
func (v InkCoverage) IsValid() bool {
	for _, candidate := range validInkCoverages {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseInkCoverage converts raw input into a InkCoverage.
func ParseInkCoverage(value string) (InkCoverage, error) {
	for _, candidate := range validInkCoverages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ink coverage %q", value)
}
