package domain

import (
	"strings"

	dErrors "privata/pkg/domain-errors"
)

// Region identifies a data residency zone with its own regional store.
type Region string

const (
	RegionUS Region = "US"
	RegionEU Region = "EU"
	RegionUK Region = "UK"
)

func (r Region) String() string { return string(r) }

// IsNil reports whether the region is unset.
func (r Region) IsNil() bool { return r == "" }

// ParseRegion normalizes a region code ("eu" -> "EU").
func ParseRegion(s string) (Region, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "region cannot be empty")
	}
	if len(s) > 8 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid region "+s)
	}
	return Region(s), nil
}
