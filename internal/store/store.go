// Package store persists comparables, zone statistics, reform cost profiles,
// and saved estimations in SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flip-estimator/internal/geo"
	"github.com/sells-group/flip-estimator/internal/model"
)

// ErrNotFound is returned when a saved estimation does not exist.
var ErrNotFound = eris.New("store: not found")

// ComparableFilter narrows ListComparables. Center and RadiusM select a
// coarse area; exact distance filtering is left to the engine.
type ComparableFilter struct {
	ReformedOnly bool       `json:"reformed_only,omitempty"`
	SoldAfter    time.Time  `json:"sold_after,omitempty"`
	Center       *geo.Point `json:"center,omitempty"`
	RadiusM      float64    `json:"radius_m,omitempty"`
	Zone         string     `json:"zone,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

// EstimationRecord is a persisted analysis result.
type EstimationRecord struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference,omitempty"`
	InputHash string          `json:"input_hash"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store defines the persistence interface for the flip estimator.
type Store interface {
	// Comparables
	ListComparables(ctx context.Context, filter ComparableFilter) ([]model.Comparable, error)
	UpsertComparables(ctx context.Context, comps []model.Comparable) (int, error)
	ZoneStats(ctx context.Context) (map[string]model.ZoneStats, error)

	// Reform costs
	CostProfiles(ctx context.Context) ([]model.ReformCostProfile, error)
	ReplaceCostProfiles(ctx context.Context, profiles []model.ReformCostProfile) (int, error)

	// Estimations
	SaveEstimation(ctx context.Context, rec EstimationRecord) (string, error)
	GetEstimation(ctx context.Context, id string) (*EstimationRecord, error)
	// FindEstimationByHash returns nil, nil when no estimation has the hash.
	FindEstimationByHash(ctx context.Context, inputHash string) (*EstimationRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by driver ("sqlite" or "postgres").
// poolCfg only applies to postgres and may be nil.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// bbox returns the bounding box for a filter with a usable center.
func (f ComparableFilter) bbox() (geo.BBox, bool) {
	if f.Center == nil || !f.Center.Valid() || f.RadiusM <= 0 {
		return geo.BBox{}, false
	}
	return geo.Around(*f.Center, f.RadiusM), true
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func int64Ptr(v *int) *int64 {
	if v == nil {
		return nil
	}
	i := int64(*v)
	return &i
}
