// Package estimate produces post-renovation sale price estimates from ranked
// comparables, falling back to zone averages when comparables are scarce.
package estimate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/comparables"
	"github.com/sells-group/flip-estimator/internal/model"
)

// ErrNoData is returned when the search leaves fewer than three comparables
// after the radius retry and the target zone has no statistics. One or two
// comparables are not aggregated on their own.
var ErrNoData = eris.New("No se encontraron comparables ni datos de zona")

// minReliableComparables is the count below which the zone average is
// preferred when available.
const minReliableComparables = 3

// Options configures a price estimation.
type Options struct {
	MaxRadius       float64   `json:"max_radius"` // meters
	MinComparables  int       `json:"min_comparables"`
	TargetMarginPct float64   `json:"target_margin_pct"`
	RecencyDays     int       `json:"recency_days"`
	MaxResults      int       `json:"max_results"`
	Now             time.Time `json:"-"`
}

// DefaultOptions returns the standard search and margin settings.
func DefaultOptions() Options {
	return Options{
		MaxRadius:       2000,
		MinComparables:  5,
		TargetMarginPct: 7,
		RecencyDays:     comparables.DefaultRecencyDays,
		MaxResults:      comparables.DefaultMaxResults,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRadius <= 0 {
		o.MaxRadius = d.MaxRadius
	}
	if o.MinComparables <= 0 {
		o.MinComparables = d.MinComparables
	}
	if o.TargetMarginPct <= 0 {
		o.TargetMarginPct = d.TargetMarginPct
	}
	if o.RecencyDays <= 0 {
		o.RecencyDays = d.RecencyDays
	}
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Validate checks that explicitly set options are usable.
func (o Options) Validate() error {
	var errs []string
	if o.MaxRadius < 0 {
		errs = append(errs, "max_radius must be >= 0")
	}
	if o.MinComparables < 0 {
		errs = append(errs, "min_comparables must be >= 0")
	}
	if o.TargetMarginPct < 0 || o.TargetMarginPct >= 100 {
		errs = append(errs, "target_margin_pct must be between 0 and 100")
	}
	if o.RecencyDays < 0 {
		errs = append(errs, "recency_days must be >= 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("estimate: invalid options: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Estimate prices target in reformed state from the comparable pool. When
// fewer than MinComparables fall inside MaxRadius the radius is doubled once.
// With fewer than three comparables left the zone average of target.Zone is
// used if known; without zone data ErrNoData is returned.
func Estimate(target model.TargetProperty, pool []model.Comparable, zones map[string]model.ZoneStats, opts Options) (*model.PriceEstimationResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if target.Surface <= 0 {
		return nil, eris.New("estimate: target surface must be positive")
	}

	log := zap.L().With(zap.String("zone", target.Zone), zap.Float64("surface", target.Surface))

	radius := opts.MaxRadius
	q := comparables.Query{
		MaxRadius:   radius,
		MinCount:    opts.MinComparables,
		RecencyDays: opts.RecencyDays,
		MaxResults:  opts.MaxResults,
		Now:         opts.Now,
	}
	ranked := comparables.Rank(target, pool, q)

	var warnings []string
	if len(ranked) < opts.MinComparables {
		found := len(ranked)
		radius *= 2
		q.MaxRadius = radius
		ranked = comparables.Rank(target, pool, q)
		warnings = append(warnings, fmt.Sprintf(
			"Solo %d comparables en %.0f m: radio ampliado a %.0f m (%d encontrados)",
			found, opts.MaxRadius, radius, len(ranked)))
		log.Warn("estimate: expanded search radius",
			zap.Int("found", found),
			zap.Int("found_expanded", len(ranked)),
			zap.Float64("radius_m", radius),
		)
	}

	if len(ranked) < minReliableComparables {
		zone, ok := zones[target.Zone]
		if ok && target.Zone != "" && zone.ReformedReference() > 0 {
			res := zoneEstimate(zone, target.Surface, opts.TargetMarginPct, radius)
			res.Comparables = ranked
			res.Warnings = append(warnings, fmt.Sprintf(
				"Menos de %d comparables (%d): se usa la media de la zona %s",
				minReliableComparables, len(ranked), target.Zone))
			log.Info("estimate: zone average fallback",
				zap.Int("comparables", len(ranked)),
				zap.Float64("avg_price", res.AvgPrice),
			)
			return res, nil
		}
		return nil, eris.Wrapf(ErrNoData, "estimate: %d comparables within %.0f m, zone %q",
			len(ranked), radius, target.Zone)
	}

	res, err := Aggregate(ranked, target.Surface, opts.TargetMarginPct, radius)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(warnings, res.Warnings...)

	log.Info("estimate: price computed",
		zap.Int("comparables", len(ranked)),
		zap.Float64("avg_price", res.AvgPrice),
		zap.Float64("avg_price_per_area", res.AvgPricePerArea),
		zap.Float64("dispersion", res.Dispersion),
		zap.Int("confidence", res.Confidence),
	)

	return res, nil
}
