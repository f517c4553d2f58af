package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ReformCategory is the scope of a renovation.
type ReformCategory string

const (
	ReformCosmetic   ReformCategory = "cosmetic"
	ReformPartial    ReformCategory = "partial"
	ReformIntegral   ReformCategory = "integral"
	ReformStructural ReformCategory = "structural"
)

// ReformCategories lists every category in ascending scope.
var ReformCategories = []ReformCategory{ReformCosmetic, ReformPartial, ReformIntegral, ReformStructural}

// ReformQuality is the finish tier of a renovation.
type ReformQuality string

const (
	QualityBasic  ReformQuality = "basic"
	QualityMedium ReformQuality = "medium"
	QualityHigh   ReformQuality = "high"
	QualityLuxury ReformQuality = "luxury"
)

// ReformQualities lists every quality tier in ascending order.
var ReformQualities = []ReformQuality{QualityBasic, QualityMedium, QualityHigh, QualityLuxury}

// ParseReformCategory parses a category name case-insensitively.
func ParseReformCategory(s string) (ReformCategory, error) {
	c := ReformCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReformCategories {
		if c == known {
			return c, nil
		}
	}
	return "", eris.Errorf("model: unknown reform category %q", s)
}

// ParseReformQuality parses a quality tier case-insensitively.
func ParseReformQuality(s string) (ReformQuality, error) {
	q := ReformQuality(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReformQualities {
		if q == known {
			return q, nil
		}
	}
	return "", eris.Errorf("model: unknown reform quality %q", s)
}

// ReformCostProfile is one row of the reform cost reference table. An empty
// Zone marks a generic entry.
type ReformCostProfile struct {
	Category      ReformCategory `json:"category" yaml:"category"`
	Quality       ReformQuality  `json:"quality" yaml:"quality"`
	Zone          string         `json:"zone,omitempty" yaml:"zone,omitempty"`
	CostPerArea   float64        `json:"cost_per_area" yaml:"cost_per_area"`
	IncludedItems []string       `json:"included_items,omitempty" yaml:"included_items,omitempty"`
	ExcludedItems []string       `json:"excluded_items,omitempty" yaml:"excluded_items,omitempty"`
	Year          int            `json:"year" yaml:"year"`
	Source        string         `json:"source,omitempty" yaml:"source,omitempty"`
}

// BreakdownItem is one work item's share of a reform budget.
type BreakdownItem struct {
	Item    string  `json:"item"`
	Percent float64 `json:"percent"` // fraction of total, 0-1
	Amount  float64 `json:"amount"`
}

// Timeline is the expected duration of a reform.
type Timeline struct {
	Weeks       int    `json:"weeks"`
	Description string `json:"description"`
}

// ReformEstimate is the renovation cost estimate for a property.
type ReformEstimate struct {
	Category        ReformCategory  `json:"category"`
	Quality         ReformQuality   `json:"quality"`
	Zone            string          `json:"zone,omitempty"`
	Surface         float64         `json:"surface"`
	BaseCostPerArea float64         `json:"base_cost_per_area"`
	CostPerArea     float64         `json:"cost_per_area"`
	AreaFactor      float64         `json:"area_factor"`
	TotalCost       float64         `json:"total_cost"`
	MinCost         float64         `json:"min_cost"`
	MaxCost         float64         `json:"max_cost"`
	Breakdown       []BreakdownItem `json:"breakdown"`
	Timeline        Timeline        `json:"timeline"`
	IncludedItems   []string        `json:"included_items,omitempty"`
	ExcludedItems   []string        `json:"excluded_items,omitempty"`
	ProfileYear     int             `json:"profile_year"`
	Notes           []string        `json:"notes,omitempty"`
}
