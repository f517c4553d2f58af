package ingest

import (
	"github.com/sells-group/flip-estimator/internal/model"
)

// ZoneStats aggregates price per m² by zone for comparables that were read
// from a file rather than a store. Comparables without a zone or price are
// ignored.
func ZoneStats(comps []model.Comparable) map[string]model.ZoneStats {
	type acc struct {
		sum, reformedSum, plainSum float64
		reformedN, plainN          int
		stats                      model.ZoneStats
	}
	byZone := make(map[string]*acc)

	for _, c := range comps {
		if c.Zone == "" || c.PricePerArea <= 0 {
			continue
		}
		a, ok := byZone[c.Zone]
		if !ok {
			a = &acc{stats: model.ZoneStats{Zone: c.Zone, MinPricePerArea: c.PricePerArea, MaxPricePerArea: c.PricePerArea}}
			byZone[c.Zone] = a
		}
		a.sum += c.PricePerArea
		a.stats.SampleSize++
		a.stats.MinPricePerArea = min(a.stats.MinPricePerArea, c.PricePerArea)
		a.stats.MaxPricePerArea = max(a.stats.MaxPricePerArea, c.PricePerArea)
		if c.WasReformed {
			a.reformedSum += c.PricePerArea
			a.reformedN++
		} else {
			a.plainSum += c.PricePerArea
			a.plainN++
		}
	}

	out := make(map[string]model.ZoneStats, len(byZone))
	for zone, a := range byZone {
		z := a.stats
		z.AvgPricePerArea = a.sum / float64(z.SampleSize)
		if a.reformedN > 0 {
			z.AvgReformedPricePerArea = a.reformedSum / float64(a.reformedN)
		}
		if a.plainN > 0 {
			z.AvgUnreformedPricePerArea = a.plainSum / float64(a.plainN)
		}
		out[zone] = z
	}
	return out
}
