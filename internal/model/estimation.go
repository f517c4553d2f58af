package model

// Adjustments are signed percentage corrections applied to a comparable's
// price per area.
type Adjustments struct {
	Surface   float64 `json:"surface"`
	Floor     float64 `json:"floor"`
	Exterior  float64 `json:"exterior"`
	Condition float64 `json:"condition"`
	Age       float64 `json:"age"`
	Total     float64 `json:"total"`
}

// RankedComparable is a comparable scored against one target.
type RankedComparable struct {
	Comparable           Comparable  `json:"comparable"`
	Distance             float64     `json:"distance"`   // meters
	Similarity           float64     `json:"similarity"` // 0-100
	Adjustments          Adjustments `json:"adjustments"`
	AdjustedPricePerArea float64     `json:"adjusted_price_per_area"`
	AdjustedPrice        float64     `json:"adjusted_price"`
	Weight               float64     `json:"weight"` // similarity / 100
}

// EstimationMethod identifies how a price estimate was produced.
type EstimationMethod string

const (
	MethodComparables EstimationMethod = "comparables"
	MethodZoneAverage EstimationMethod = "zone_average"
)

// PriceEstimationResult is the post-renovation sale price estimate.
type PriceEstimationResult struct {
	Method          EstimationMethod   `json:"method"`
	MinPrice        float64            `json:"min_price"`
	AvgPrice        float64            `json:"avg_price"`
	MaxPrice        float64            `json:"max_price"`
	MinPricePerArea float64            `json:"min_price_per_area"`
	AvgPricePerArea float64            `json:"avg_price_per_area"`
	MaxPricePerArea float64            `json:"max_price_per_area"`
	MarginPct       float64            `json:"margin_pct"`
	Dispersion      float64            `json:"dispersion"` // coefficient of variation
	Confidence      int                `json:"confidence"` // 0-100
	SearchRadius    float64            `json:"search_radius"`
	Comparables     []RankedComparable `json:"comparables"`
	Notes           []string           `json:"notes,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}
