// Package comparables selects and ranks sold properties around a target.
package comparables

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/adjust"
	"github.com/sells-group/flip-estimator/internal/model"
	"github.com/sells-group/flip-estimator/internal/scorer"
)

// Defaults for a search.
const (
	DefaultRecencyDays = 365
	DefaultMaxResults  = 10
)

// Query specifies one comparable search.
type Query struct {
	MaxRadius   float64   // meters
	MinCount    int       // caller's minimum; also widens the result cap
	RecencyDays int       // sale-date window; 0 means DefaultRecencyDays
	MaxResults  int       // 0 means DefaultMaxResults
	Now         time.Time // reference time for the recency window
}

// Eligible returns the reformed comparables sold within the recency window
// ending at now that carry a usable location, a positive price per area, and
// finite numbers throughout.
func Eligible(pool []model.Comparable, now time.Time, recencyDays int) []model.Comparable {
	if recencyDays <= 0 {
		recencyDays = DefaultRecencyDays
	}
	cutoff := now.AddDate(0, 0, -recencyDays)

	out := make([]model.Comparable, 0, len(pool))
	for _, c := range pool {
		if !c.WasReformed {
			continue
		}
		if c.SaleDate.Before(cutoff) || c.SaleDate.After(now) {
			continue
		}
		if !c.HasLocation() || !finite(c.PricePerArea) || c.PricePerArea <= 0 {
			continue
		}
		if !finite(c.Price) || !finite(c.Surface) || !finite(c.Reliability) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Rank scores every comparable of pool within q.MaxRadius of target and
// returns them by similarity, best first, capped at max(q.MinCount, q.MaxResults).
// The pool is filtered with Eligible before ranking.
func Rank(target model.TargetProperty, pool []model.Comparable, q Query) []model.RankedComparable {
	if !target.HasLocation() {
		return nil
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}

	eligible := Eligible(pool, q.Now, q.RecencyDays)
	ranked := make([]model.RankedComparable, 0, len(eligible))
	for _, c := range eligible {
		d := target.Location.DistanceTo(c.Location)
		if math.IsNaN(d) || d > q.MaxRadius {
			continue
		}
		ranked = append(ranked, rankOne(target, c, d))
	}

	sortRanked(ranked)

	limit := q.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if q.MinCount > limit {
		limit = q.MinCount
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	zap.L().Debug("comparables: ranked",
		zap.Int("pool", len(pool)),
		zap.Int("eligible", len(eligible)),
		zap.Int("returned", len(ranked)),
		zap.Float64("radius_m", q.MaxRadius),
	)

	return ranked
}

func rankOne(target model.TargetProperty, c model.Comparable, distance float64) model.RankedComparable {
	sim := scorer.Similarity(target, c, distance)
	adj := adjust.Compute(target, c)
	perArea, price := adjust.Apply(c.PricePerArea, adj, target.Surface)
	return model.RankedComparable{
		Comparable:           c,
		Distance:             distance,
		Similarity:           sim,
		Adjustments:          adj,
		AdjustedPricePerArea: perArea,
		AdjustedPrice:        price,
		Weight:               sim / 100,
	}
}

// sortRanked orders by similarity desc, then distance asc, then ID, so the
// ranking does not depend on pool order.
func sortRanked(r []model.RankedComparable) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].Similarity != r[j].Similarity {
			return r[i].Similarity > r[j].Similarity
		}
		if r[i].Distance != r[j].Distance {
			return r[i].Distance < r[j].Distance
		}
		return r[i].Comparable.ID < r[j].Comparable.ID
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
