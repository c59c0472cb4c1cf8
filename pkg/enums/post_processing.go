package enums

import "fmt"

// PostProcessingOption is a per-unit finishing step applied to pouches.
type PostProcessingOption string

const (
	PostProcessingZipper   PostProcessingOption = "zipper"
	PostProcessingValve    PostProcessingOption = "valve"
	PostProcessingHangHole PostProcessingOption = "hang_hole"
)

var validPostProcessingOptions = []PostProcessingOption{
	PostProcessingZipper,
	PostProcessingValve,
	PostProcessingHangHole,
}

// String implements fmt.Stringer.
func (v PostProcessingOption) String() string {
	return string(v)
}

// IsValid reports whether the value is a known PostProcessingOption.
func (v PostProcessingOption) IsValid() bool {
	for _, candidate := range validPostProcessingOptions {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePostProcessingOption converts raw input into a PostProcessingOption.
func ParsePostProcessingOption(value string) (PostProcessingOption, error) {
	for _, candidate := range validPostProcessingOptions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid post-processing option %q", value)
}
