package estimate

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flip-estimator/internal/model"
)

// Confidence model.
const (
	fullConfidence         = 100
	minConfidence          = 20
	zoneFallbackConfidence = 30
	preferredComparables   = 5
	perMissingComparable   = 10
	lowSimilarityThreshold = 70.0
	lowSimilarityPenalty   = 15
	wideRadiusThreshold    = 1500.0 // meters
	wideRadiusPenalty      = 10
	dispersionThreshold    = 0.15 // coefficient of variation
	dispersionPenalty      = 15
	maxWidenedMarginPct    = 15.0
	widenFactor            = 1.5
)

// Aggregate combines ranked comparables into a similarity-weighted price
// estimate for a target of targetSurface m². radius is the search radius that
// produced ranked and feeds the confidence score.
func Aggregate(ranked []model.RankedComparable, targetSurface, marginPct, radius float64) (*model.PriceEstimationResult, error) {
	if len(ranked) == 0 {
		return nil, eris.New("estimate: no comparables to aggregate")
	}
	if targetSurface <= 0 {
		return nil, eris.New("estimate: target surface must be positive")
	}

	st := computeStats(ranked)

	res := &model.PriceEstimationResult{
		Method:       model.MethodComparables,
		Dispersion:   st.cov,
		SearchRadius: radius,
		Comparables:  ranked,
	}

	margin := marginPct
	if st.cov > dispersionThreshold {
		margin = math.Min(maxWidenedMarginPct, marginPct*widenFactor)
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Alta dispersión de precios (CV %.1f%%): margen ampliado al %.1f%%", st.cov*100, margin))
	}
	setRange(res, st.weightedMean, targetSurface, margin)

	conf := fullConfidence
	n := len(ranked)
	if n < preferredComparables {
		conf -= perMissingComparable * (preferredComparables - n)
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Solo %d comparables (se recomiendan %d): confianza reducida", n, preferredComparables))
	}
	if st.meanSimilarity < lowSimilarityThreshold {
		conf -= lowSimilarityPenalty
		res.Warnings = append(res.Warnings, fmt.Sprintf("Similitud media baja (%.1f)", st.meanSimilarity))
	}
	if radius > wideRadiusThreshold {
		conf -= wideRadiusPenalty
		res.Warnings = append(res.Warnings, fmt.Sprintf("Radio de búsqueda amplio (%.0f m)", radius))
	}
	if st.cov > dispersionThreshold {
		conf -= dispersionPenalty
	}
	res.Confidence = clampConfidence(conf)

	res.Notes = append(res.Notes,
		fmt.Sprintf("Estimación basada en %d comparables en un radio de %.0f m", n, radius),
		fmt.Sprintf("Similitud media %.1f, dispersión (CV) %.1f%%", st.meanSimilarity, st.cov*100),
	)

	return res, nil
}

// zoneEstimate prices the target from the zone's reformed average.
func zoneEstimate(zone model.ZoneStats, targetSurface, marginPct, radius float64) *model.PriceEstimationResult {
	res := &model.PriceEstimationResult{
		Method:       model.MethodZoneAverage,
		SearchRadius: radius,
		Confidence:   zoneFallbackConfidence,
	}
	setRange(res, zone.ReformedReference(), targetSurface, marginPct)
	res.Notes = append(res.Notes, fmt.Sprintf(
		"Estimación basada en la media de la zona %s (%.0f €/m²)", zone.Zone, zone.ReformedReference()))
	return res
}

func setRange(res *model.PriceEstimationResult, pricePerArea, surface, marginPct float64) {
	m := marginPct / 100
	res.MarginPct = marginPct
	res.AvgPricePerArea = pricePerArea
	res.MinPricePerArea = pricePerArea * (1 - m)
	res.MaxPricePerArea = pricePerArea * (1 + m)
	res.AvgPrice = pricePerArea * surface
	res.MinPrice = res.AvgPrice * (1 - m)
	res.MaxPrice = res.AvgPrice * (1 + m)
}

func clampConfidence(c int) int {
	if c < minConfidence {
		return minConfidence
	}
	if c > fullConfidence {
		return fullConfidence
	}
	return c
}

type stats struct {
	weightedMean   float64
	mean           float64
	cov            float64
	meanSimilarity float64
}

// computeStats works on deviations from the first price so that identical
// prices produce an exact mean and zero dispersion.
func computeStats(ranked []model.RankedComparable) stats {
	n := float64(len(ranked))
	ref := ranked[0].AdjustedPricePerArea

	var sumW, sumWDev, sumDev, sumSim float64
	for _, rc := range ranked {
		dev := rc.AdjustedPricePerArea - ref
		sumW += rc.Weight
		sumWDev += rc.Weight * dev
		sumDev += dev
		sumSim += rc.Similarity
	}

	meanDev := sumDev / n
	st := stats{
		mean:           ref + meanDev,
		meanSimilarity: sumSim / n,
	}
	if sumW > 0 {
		st.weightedMean = ref + sumWDev/sumW
	} else {
		st.weightedMean = st.mean
	}

	var sq float64
	for _, rc := range ranked {
		d := (rc.AdjustedPricePerArea - ref) - meanDev
		sq += d * d
	}
	if st.mean > 0 {
		st.cov = math.Sqrt(sq/n) / st.mean
	}
	return st
}
