// Package cost estimates renovation budgets from a reform cost table.
package cost

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/model"
)

// Area efficiency breakpoints (m²) and multipliers.
const (
	largeAreaThreshold = 200.0
	largeAreaFactor    = 0.95
	smallAreaThreshold = 80.0
	smallAreaFactor    = 1.10
	minCostFactor      = 0.85
	maxCostFactor      = 1.15
)

// Calculator computes reform estimates against a fixed cost table.
type Calculator struct {
	table *Table
}

// NewCalculator creates a Calculator over table. A nil table uses DefaultTable.
func NewCalculator(table *Table) *Calculator {
	if table == nil {
		table = DefaultTable()
	}
	return &Calculator{table: table}
}

// Estimate prices a reform of the given category and quality over surface m².
// zone may be empty. Returns ErrNoCostProfile when the table has no matching row.
func (c *Calculator) Estimate(surface float64, category model.ReformCategory, quality model.ReformQuality, zone string) (*model.ReformEstimate, error) {
	if surface <= 0 || math.IsNaN(surface) || math.IsInf(surface, 0) {
		return nil, eris.Errorf("cost: surface must be positive, got %v", surface)
	}
	if _, ok := breakdowns[category]; !ok {
		return nil, eris.Errorf("cost: unknown reform category %q", category)
	}

	profile, err := c.table.Lookup(category, quality, zone)
	if err != nil {
		return nil, err
	}

	factor := AreaFactor(surface)
	perArea := profile.CostPerArea * factor
	total := math.Round(perArea * surface)

	est := &model.ReformEstimate{
		Category:        category,
		Quality:         quality,
		Zone:            zone,
		Surface:         surface,
		BaseCostPerArea: profile.CostPerArea,
		CostPerArea:     perArea,
		AreaFactor:      factor,
		TotalCost:       total,
		MinCost:         total * minCostFactor,
		MaxCost:         total * maxCostFactor,
		Breakdown:       breakdown(category, total),
		Timeline:        timeline(category, surface),
		IncludedItems:   profile.IncludedItems,
		ExcludedItems:   profile.ExcludedItems,
		ProfileYear:     profile.Year,
	}

	switch {
	case factor < 1:
		est.Notes = append(est.Notes, "Superficie superior a 200 m²: economía de escala del 5%")
	case factor > 1:
		est.Notes = append(est.Notes, "Superficie inferior a 80 m²: sobrecoste del 10% por superficie reducida")
	}
	est.Notes = append(est.Notes, advisories[category]...)

	zap.L().Debug("cost: reform estimated",
		zap.String("category", string(category)),
		zap.String("quality", string(quality)),
		zap.String("zone", zone),
		zap.Float64("surface", surface),
		zap.Float64("total_cost", total),
	)

	return est, nil
}

// AreaFactor returns the cost multiplier for a surface: economies of scale
// above 200 m² and a small-area surcharge below 80 m².
func AreaFactor(surface float64) float64 {
	switch {
	case surface > largeAreaThreshold:
		return largeAreaFactor
	case surface < smallAreaThreshold:
		return smallAreaFactor
	default:
		return 1
	}
}
