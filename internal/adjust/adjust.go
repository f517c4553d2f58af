// Package adjust corrects a comparable's observed price per area for the
// attribute differences between it and the target property.
package adjust

import (
	"github.com/sells-group/flip-estimator/internal/model"
)

// Percentage coefficients.
const (
	surfaceElasticity = 3.0   // % per 100% relative surface gap
	floorPctPerLevel  = 1.5   // % per floor of difference
	exteriorPct       = 8.0   // exterior vs interior premium
	unreformedPct     = -12.0 // discount for comparables sold before renovation
	agePctPerDecade   = 0.5
)

// Compute returns the signed percentage adjustments that translate comp's
// price per area into the target's attributes, in reformed state. Components
// without data on both sides are zero. Total is the plain sum.
func Compute(target model.TargetProperty, comp model.Comparable) model.Adjustments {
	a := model.Adjustments{
		Surface:   surface(target.Surface, comp.Surface),
		Floor:     floor(target.Floor, comp.Floor),
		Exterior:  exterior(target.Exterior, comp.Exterior),
		Condition: condition(comp.WasReformed),
		Age:       age(target.BuildYear, comp.BuildYear),
	}
	a.Total = a.Surface + a.Floor + a.Exterior + a.Condition + a.Age
	return a
}

// Apply returns the adjusted price per area and the adjusted total price for
// a target of targetSurface m².
func Apply(pricePerArea float64, adj model.Adjustments, targetSurface float64) (adjustedPerArea, adjustedPrice float64) {
	adjustedPerArea = pricePerArea * (1 + adj.Total/100)
	return adjustedPerArea, adjustedPerArea * targetSurface
}

// surface prices larger comparables down per m² and smaller ones up.
func surface(target, comp float64) float64 {
	if target <= 0 || comp <= 0 {
		return 0
	}
	return -(comp - target) / target * surfaceElasticity
}

func floor(target, comp *int) float64 {
	if target == nil || comp == nil {
		return 0
	}
	return float64(*comp-*target) * floorPctPerLevel
}

func exterior(target, comp bool) float64 {
	switch {
	case target && !comp:
		return exteriorPct
	case !target && comp:
		return -exteriorPct
	default:
		return 0
	}
}

// condition assumes the estimate is for the target after renovation.
func condition(compReformed bool) float64 {
	if compReformed {
		return 0
	}
	return unreformedPct
}

func age(target, comp *int) float64 {
	if target == nil || comp == nil {
		return 0
	}
	return float64(*comp-*target) / 10 * agePctPerDecade
}
