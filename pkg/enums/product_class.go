package enums

import "fmt"

// ProductClass distinguishes discrete pouch products from continuous roll film.
type ProductClass string

const (
	ProductClassFlatPouch     ProductClass = "flat_pouch"
	ProductClassStandUpPouch  ProductClass = "stand_up_pouch"
	ProductClassGussetedPouch ProductClass = "gusseted_pouch"
	ProductClassBoxPouch      ProductClass = "box_pouch"
	ProductClassRollFilm      ProductClass = "roll_film"
)

var validProductClasses = []ProductClass{
	ProductClassFlatPouch,
	ProductClassStandUpPouch,
	ProductClassGussetedPouch,
	ProductClassBoxPouch,
	ProductClassRollFilm,
}

// String implements fmt.Stringer.
func (v ProductClass) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ProductClass.
func (v ProductClass) IsValid() bool {
	for _, candidate := range validProductClasses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseProductClass converts raw input into a ProductClass.
func ParseProductClass(value string) (ProductClass, error) {
	for _, candidate := range validProductClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product class %q", value)
}

// IsPouch reports whether the class is a discrete pouch made from a film roll.
func (v ProductClass) IsPouch() bool {
	return v.IsValid() && v != ProductClassRollFilm
}
