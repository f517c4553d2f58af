// Package scorer rates how closely a comparable property matches a target.
package scorer

import (
	"math"

	"github.com/sells-group/flip-estimator/internal/model"
)

// Penalty parameters. Each factor is capped on its own; the total is not.
const (
	surfaceTolerance = 0.15 // relative surface gap tolerated without penalty
	surfaceCap       = 30.0
	distancePer100m  = 2.0
	distanceCap      = 20.0
	roomPenalty      = 5.0 // per room of difference
	exteriorPenalty  = 15.0
	floorPerLevel    = 3.0
	floorCap         = 10.0
	ageGraceYears    = 20.0
	ageCap           = 15.0
	maxSimilarity    = 100.0
)

// Breakdown holds the points subtracted per factor.
type Breakdown struct {
	Surface  float64 `json:"surface"`
	Distance float64 `json:"distance"`
	Rooms    float64 `json:"rooms"`
	Exterior float64 `json:"exterior"`
	Floor    float64 `json:"floor"`
	Age      float64 `json:"age"`
}

// Total returns the sum of all penalties.
func (b Breakdown) Total() float64 {
	return b.Surface + b.Distance + b.Rooms + b.Exterior + b.Floor + b.Age
}

// Penalties computes the per-factor penalties for comp against target, where
// distance is the separation in meters. Factors with unknown data on either
// side contribute nothing.
func Penalties(target model.TargetProperty, comp model.Comparable, distance float64) Breakdown {
	return Breakdown{
		Surface:  surfacePenalty(target.Surface, comp.Surface),
		Distance: distancePenalty(distance),
		Rooms:    roomsPenalty(target.Rooms, comp.Rooms),
		Exterior: exteriorMismatch(target.Exterior, comp.Exterior),
		Floor:    floorPenalty(target.Floor, comp.Floor),
		Age:      agePenalty(target.BuildYear, comp.BuildYear),
	}
}

// Similarity returns a 0-100 score; 100 is an identical property at the same spot.
func Similarity(target model.TargetProperty, comp model.Comparable, distance float64) float64 {
	return math.Max(0, maxSimilarity-Penalties(target, comp, distance).Total())
}

func surfacePenalty(target, comp float64) float64 {
	if target <= 0 {
		return 0
	}
	rel := math.Abs(target-comp) / target
	if rel <= surfaceTolerance {
		return 0
	}
	return math.Min(surfaceCap, rel*100)
}

// distancePenalty charges 2 points per 100 m. Unknown distances take the cap.
func distancePenalty(meters float64) float64 {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return distanceCap
	}
	if meters <= 0 {
		return 0
	}
	return math.Min(distanceCap, meters/100*distancePer100m)
}

func roomsPenalty(target, comp *int) float64 {
	if target == nil || comp == nil {
		return 0
	}
	return roomPenalty * math.Abs(float64(*target-*comp))
}

func exteriorMismatch(target, comp bool) float64 {
	if target != comp {
		return exteriorPenalty
	}
	return 0
}

func floorPenalty(target, comp *int) float64 {
	if target == nil || comp == nil {
		return 0
	}
	return math.Min(floorCap, floorPerLevel*math.Abs(float64(*target-*comp)))
}

func agePenalty(target, comp *int) float64 {
	if target == nil || comp == nil {
		return 0
	}
	gap := math.Abs(float64(*target - *comp))
	if gap <= ageGraceYears {
		return 0
	}
	return math.Min(ageCap, (gap-ageGraceYears)/2)
}
