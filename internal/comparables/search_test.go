package comparables

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flip-estimator/internal/geo"
	"github.com/sells-group/flip-estimator/internal/model"
)

var (
	now    = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	center = geo.Point{Lat: 40.4153, Lon: -3.6845}
)

// north returns a point the given distance due north of center.
func north(meters float64) *geo.Point {
	return &geo.Point{Lat: center.Lat + meters/(geo.EarthRadiusMeters*math.Pi/180), Lon: center.Lon}
}

func target() model.TargetProperty {
	c := center
	return model.TargetProperty{Attributes: model.Attributes{Location: &c, Surface: 100, Exterior: true}}
}

func comp(id string, meters float64) model.Comparable {
	return model.Comparable{
		ID:           id,
		Attributes:   model.Attributes{Location: north(meters), Surface: 100, Exterior: true},
		PricePerArea: 5000,
		Price:        500_000,
		SaleDate:     now.AddDate(0, -2, 0),
		WasReformed:  true,
	}
}

func TestEligible(t *testing.T) {
	fresh := comp("fresh", 100)
	old := comp("old", 100)
	old.SaleDate = now.AddDate(-2, 0, 0)
	unreformed := comp("unreformed", 100)
	unreformed.WasReformed = false
	unlocated := comp("unlocated", 100)
	unlocated.Location = nil
	future := comp("future", 100)
	future.SaleDate = now.AddDate(0, 0, 3)
	unpriced := comp("unpriced", 100)
	unpriced.PricePerArea = 0

	got := Eligible([]model.Comparable{fresh, old, unreformed, unlocated, future, unpriced}, now, 365)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ID)
}

func TestEligible_NonFinite(t *testing.T) {
	nanLoc := comp("nan-location", 100)
	nanLoc.Location = &geo.Point{Lat: math.NaN(), Lon: math.NaN()}
	nanPPA := comp("nan-ppa", 100)
	nanPPA.PricePerArea = math.NaN()
	infPrice := comp("inf-price", 100)
	infPrice.Price = math.Inf(1)
	nanSurface := comp("nan-surface", 100)
	nanSurface.Surface = math.NaN()

	got := Eligible([]model.Comparable{comp("ok", 100), nanLoc, nanPPA, infPrice, nanSurface}, now, 365)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
}

func TestEligible_DefaultWindow(t *testing.T) {
	c := comp("edge", 10)
	c.SaleDate = now.AddDate(0, 0, -364)
	assert.Len(t, Eligible([]model.Comparable{c}, now, 0), 1)

	c.SaleDate = now.AddDate(0, 0, -366)
	assert.Empty(t, Eligible([]model.Comparable{c}, now, 0))
}

func TestRank_RadiusAndOrder(t *testing.T) {
	pool := []model.Comparable{
		comp("far", 1800),
		comp("near", 100),
		comp("outside", 2600),
		comp("mid", 900),
	}

	got := Rank(target(), pool, Query{MaxRadius: 2000, MinCount: 5, Now: now})
	require.Len(t, got, 3)
	assert.Equal(t, "near", got[0].Comparable.ID)
	assert.Equal(t, "mid", got[1].Comparable.ID)
	assert.Equal(t, "far", got[2].Comparable.ID)

	for _, rc := range got {
		assert.LessOrEqual(t, rc.Distance, 2000.0)
		assert.InDelta(t, rc.Similarity/100, rc.Weight, 1e-12)
		assert.InDelta(t, rc.AdjustedPricePerArea*100, rc.AdjustedPrice, 1e-6)
	}
	assert.InDelta(t, 98, got[0].Similarity, 0.01)
}

func TestRank_Truncates(t *testing.T) {
	var pool []model.Comparable
	for i := 0; i < 25; i++ {
		pool = append(pool, comp(fmt.Sprintf("c%02d", i), float64(i*50)))
	}

	got := Rank(target(), pool, Query{MaxRadius: 2000, MinCount: 5, Now: now})
	assert.Len(t, got, DefaultMaxResults)

	got = Rank(target(), pool, Query{MaxRadius: 2000, MinCount: 15, Now: now})
	assert.Len(t, got, 15)
}

func TestRank_UnknownTargetLocation(t *testing.T) {
	tgt := target()
	tgt.Location = nil
	assert.Empty(t, Rank(tgt, []model.Comparable{comp("a", 10)}, Query{MaxRadius: 2000, Now: now}))
}

func TestRank_IndependentOfPoolOrder(t *testing.T) {
	a, b, c := comp("a", 300), comp("b", 300), comp("c", 700)
	q := Query{MaxRadius: 2000, Now: now}

	first := Rank(target(), []model.Comparable{a, b, c}, q)
	second := Rank(target(), []model.Comparable{c, b, a}, q)
	assert.Equal(t, first, second)
	assert.Equal(t, "a", first[0].Comparable.ID)
}
