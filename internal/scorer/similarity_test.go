package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/flip-estimator/internal/model"
)

func ptrInt(v int) *int { return &v }

func baseTarget() model.TargetProperty {
	return model.TargetProperty{Attributes: model.Attributes{
		Surface:   100,
		Rooms:     ptrInt(3),
		Floor:     ptrInt(2),
		Exterior:  true,
		BuildYear: ptrInt(1970),
	}}
}

func twin() model.Comparable {
	return model.Comparable{ID: "c1", Attributes: baseTarget().Attributes}
}

func TestSimilarity_IdenticalAtSameSpot(t *testing.T) {
	assert.Equal(t, 100.0, Similarity(baseTarget(), twin(), 0))
}

func TestPenalties(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *model.Comparable)
		distance float64
		field    func(b Breakdown) float64
		want     float64
	}{
		{"surface within tolerance", func(c *model.Comparable) { c.Surface = 115 }, 0,
			func(b Breakdown) float64 { return b.Surface }, 0},
		{"surface 20% larger", func(c *model.Comparable) { c.Surface = 120 }, 0,
			func(b Breakdown) float64 { return b.Surface }, 20},
		{"surface capped at 30", func(c *model.Comparable) { c.Surface = 250 }, 0,
			func(b Breakdown) float64 { return b.Surface }, 30},
		{"distance 2 per 100m", nil, 500,
			func(b Breakdown) float64 { return b.Distance }, 10},
		{"distance capped at 20", nil, 5000,
			func(b Breakdown) float64 { return b.Distance }, 20},
		{"distance NaN takes cap", nil, math.NaN(),
			func(b Breakdown) float64 { return b.Distance }, 20},
		{"two rooms apart", func(c *model.Comparable) { c.Rooms = ptrInt(5) }, 0,
			func(b Breakdown) float64 { return b.Rooms }, 10},
		{"rooms unknown", func(c *model.Comparable) { c.Rooms = nil }, 0,
			func(b Breakdown) float64 { return b.Rooms }, 0},
		{"interior vs exterior", func(c *model.Comparable) { c.Exterior = false }, 0,
			func(b Breakdown) float64 { return b.Exterior }, 15},
		{"one floor apart", func(c *model.Comparable) { c.Floor = ptrInt(3) }, 0,
			func(b Breakdown) float64 { return b.Floor }, 3},
		{"floor capped at 10", func(c *model.Comparable) { c.Floor = ptrInt(8) }, 0,
			func(b Breakdown) float64 { return b.Floor }, 10},
		{"age gap within 20 years", func(c *model.Comparable) { c.BuildYear = ptrInt(1990) }, 0,
			func(b Breakdown) float64 { return b.Age }, 0},
		{"age gap 30 years", func(c *model.Comparable) { c.BuildYear = ptrInt(2000) }, 0,
			func(b Breakdown) float64 { return b.Age }, 5},
		{"age capped at 15", func(c *model.Comparable) { c.BuildYear = ptrInt(2024) }, 0,
			func(b Breakdown) float64 { return b.Age }, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := twin()
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			b := Penalties(baseTarget(), c, tt.distance)
			assert.InDelta(t, tt.want, tt.field(b), 1e-9)
		})
	}
}

func TestExteriorMismatch_Symmetric(t *testing.T) {
	assert.Equal(t, exteriorMismatch(true, false), exteriorMismatch(false, true))
	assert.Equal(t, 0.0, exteriorMismatch(false, false))
}

func TestSimilarity_Additive(t *testing.T) {
	c := twin()
	c.Surface = 120            // 20
	c.Rooms = ptrInt(4)        // 5
	c.Exterior = false         // 15
	c.BuildYear = ptrInt(2000) // 5

	// 300 m -> 6
	assert.InDelta(t, 100-20-6-5-15-5, Similarity(baseTarget(), c, 300), 1e-9)
}

func TestSimilarity_FlooredAtZero(t *testing.T) {
	c := twin()
	c.Surface = 400
	c.Rooms = ptrInt(9)
	c.Exterior = false
	c.Floor = ptrInt(12)
	c.BuildYear = ptrInt(2025)

	assert.Equal(t, 0.0, Similarity(baseTarget(), c, 10_000))
}

func TestSimilarity_Bounded(t *testing.T) {
	surfaces := []float64{20, 60, 100, 180, 600}
	distances := []float64{0, 50, 900, 1e6, math.NaN()}
	for _, s := range surfaces {
		for _, d := range distances {
			c := twin()
			c.Surface = s
			got := Similarity(baseTarget(), c, d)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		}
	}
}

func TestSimilarity_Deterministic(t *testing.T) {
	c := twin()
	c.Surface = 131
	c.Floor = ptrInt(0)
	a := Similarity(baseTarget(), c, 733)
	b := Similarity(baseTarget(), c, 733)
	assert.Equal(t, a, b)
}
