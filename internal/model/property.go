// Package model defines the property, comparable, and result records shared by
// the estimation engine and its collaborators.
package model

import (
	"time"

	"github.com/sells-group/flip-estimator/internal/geo"
)

// Attributes holds the physical and geographic description of a dwelling.
// Pointer fields are optional; nil means unknown.
type Attributes struct {
	Location  *geo.Point `json:"location,omitempty"`
	Surface   float64    `json:"surface"` // m²
	Rooms     *int       `json:"rooms,omitempty"`
	Bathrooms *int       `json:"bathrooms,omitempty"`
	Floor     *int       `json:"floor,omitempty"` // 0 = ground floor
	Exterior  bool       `json:"exterior"`
	Elevator  bool       `json:"elevator"`
	BuildYear *int       `json:"build_year,omitempty"`
	Condition string     `json:"condition,omitempty"`
	Zone      string     `json:"zone,omitempty"`
}

// HasLocation reports whether the coordinates are known and usable.
func (a Attributes) HasLocation() bool {
	return a.Location != nil && a.Location.Valid()
}

// TargetProperty is the subject of a flip analysis.
type TargetProperty struct {
	Attributes
	Reference string `json:"reference,omitempty"`
}

// Comparable is a sold property used as a pricing reference.
type Comparable struct {
	ID string `json:"id"`
	Attributes
	Price        float64   `json:"price"`
	PricePerArea float64   `json:"price_per_area"`
	SaleDate     time.Time `json:"sale_date"`
	WasReformed  bool      `json:"was_reformed"`
	Reliability  float64   `json:"reliability"` // 0-1 source quality weight
	Source       string    `json:"source,omitempty"`
}

// ZoneStats holds aggregate sale prices for a zone, used when no comparables
// are available.
type ZoneStats struct {
	Zone                      string  `json:"zone"`
	AvgPricePerArea           float64 `json:"avg_price_per_area"`
	AvgReformedPricePerArea   float64 `json:"avg_reformed_price_per_area"`
	AvgUnreformedPricePerArea float64 `json:"avg_unreformed_price_per_area"`
	MinPricePerArea           float64 `json:"min_price_per_area"`
	MaxPricePerArea           float64 `json:"max_price_per_area"`
	SampleSize                int     `json:"sample_size"`
}

// ReformedReference returns the reformed-state price per area, falling back
// to the overall average when no reformed average is recorded.
func (z ZoneStats) ReformedReference() float64 {
	if z.AvgReformedPricePerArea > 0 {
		return z.AvgReformedPricePerArea
	}
	return z.AvgPricePerArea
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
