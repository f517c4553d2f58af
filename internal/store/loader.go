package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/model"
	"github.com/sells-group/flip-estimator/internal/resilience"
)

// Snapshot is everything an analysis reads from the store, fully
// materialized.
type Snapshot struct {
	Comparables  []model.Comparable
	Zones        map[string]model.ZoneStats
	CostProfiles []model.ReformCostProfile
}

// LoadRequest describes the area and period to load comparables for.
type LoadRequest struct {
	Target      model.TargetProperty
	RadiusM     float64
	RecencyDays int
	Now         time.Time
}

// Loader reads snapshots from a Store, retrying transient failures so that
// the engine only ever sees complete data.
type Loader struct {
	store   Store
	backend string
	retry   resilience.RetryConfig
}

// NewLoader creates a Loader. backend names the store in retry logs.
func NewLoader(s Store, backend string, retry resilience.RetryConfig) *Loader {
	return &Loader{store: s, backend: backend, retry: retry}
}

// Store returns the wrapped store.
func (l *Loader) Store() Store {
	return l.store
}

// Load fetches comparables sold within the recency window around the target,
// all zone statistics, and the stored cost profiles. RadiusM should already
// include any radius expansion the engine may apply. Targets without a known
// location load the comparables of their zone.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*Snapshot, error) {
	filter := ComparableFilter{ReformedOnly: true}
	if !req.Now.IsZero() && req.RecencyDays > 0 {
		filter.SoldAfter = req.Now.AddDate(0, 0, -req.RecencyDays)
	}
	if req.Target.HasLocation() {
		filter.Center = req.Target.Location
		filter.RadiusM = req.RadiusM
	} else {
		filter.Zone = req.Target.Zone
	}

	comps, err := resilience.DoVal(ctx, l.config("list_comparables"), func(ctx context.Context) ([]model.Comparable, error) {
		return l.store.ListComparables(ctx, filter)
	})
	if err != nil {
		return nil, err
	}

	zones, err := resilience.DoVal(ctx, l.config("zone_stats"), l.store.ZoneStats)
	if err != nil {
		return nil, err
	}

	profiles, err := resilience.DoVal(ctx, l.config("cost_profiles"), l.store.CostProfiles)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("store: snapshot loaded",
		zap.String("backend", l.backend),
		zap.Int("comparables", len(comps)),
		zap.Int("zones", len(zones)),
		zap.Int("cost_profiles", len(profiles)),
	)

	return &Snapshot{Comparables: comps, Zones: zones, CostProfiles: profiles}, nil
}

// GetEstimation reads a saved estimation with retries.
func (l *Loader) GetEstimation(ctx context.Context, id string) (*EstimationRecord, error) {
	return resilience.DoVal(ctx, l.config("get_estimation"), func(ctx context.Context) (*EstimationRecord, error) {
		return l.store.GetEstimation(ctx, id)
	})
}

func (l *Loader) config(op string) resilience.RetryConfig {
	cfg := l.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(l.backend, op)
	}
	return cfg
}
