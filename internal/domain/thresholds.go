package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidThresholds is returned when a threshold configuration cannot be
// used. It fails a run before any record is processed.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Thresholds holds the inactivity boundaries, in years, that drive the
// recommended compliance action. The engine applies strict greater-than
// comparisons: an account sitting exactly on a boundary falls to the next
// lower tier.
//
// Callers are expected to keep NotifyYears <= FreezeYears <= EscalateYears.
// The engine does not enforce the ordering; with an inverted configuration
// the action mapping is ill-defined (it still terminates, but the tiers
// overlap). That is a caller contract, not an error.
type Thresholds struct {
	NotifyYears   float64 `json:"notifyYears"`
	FreezeYears   float64 `json:"freezeYears"`
	EscalateYears float64 `json:"escalateYears"`
}

// DefaultThresholds returns the regulatory defaults of 3/4/5 years.
func DefaultThresholds() Thresholds {
	return Thresholds{NotifyYears: 3, FreezeYears: 4, EscalateYears: 5}
}

// Validate rejects non-positive or NaN thresholds.
func (t Thresholds) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"notifyYears", t.NotifyYears},
		{"freezeYears", t.FreezeYears},
		{"escalateYears", t.EscalateYears},
	} {
		if math.IsNaN(v.value) {
			return fmt.Errorf("%w: %s is NaN", ErrInvalidThresholds, v.name)
		}
		if v.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidThresholds, v.name, v.value)
		}
	}
	return nil
}
