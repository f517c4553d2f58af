// Package analysis runs a complete flip analysis: sale price, reform budget,
// and feasibility for one target property.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/comparables"
	"github.com/sells-group/flip-estimator/internal/cost"
	"github.com/sells-group/flip-estimator/internal/estimate"
	"github.com/sells-group/flip-estimator/internal/feasibility"
	"github.com/sells-group/flip-estimator/internal/model"
)

// Request describes one analysis.
type Request struct {
	Target         model.TargetProperty   `json:"target"`
	PurchasePrice  float64                `json:"purchase_price,omitempty"`
	ReformCategory model.ReformCategory   `json:"reform_category"`
	ReformQuality  model.ReformQuality    `json:"reform_quality"`
	Options        estimate.Options       `json:"options"`
	Thresholds     feasibility.Thresholds `json:"thresholds"`
}

// Inputs are the materialized collections an analysis runs against.
type Inputs struct {
	Comparables []model.Comparable
	Zones       map[string]model.ZoneStats
	Costs       *cost.Table
}

// Result holds every part of an analysis. Reform and Feasibility are nil
// when the reform budget could not be priced; ReformError says why.
type Result struct {
	InputHash   string                       `json:"input_hash"`
	Sale        *model.PriceEstimationResult `json:"sale"`
	Reform      *model.ReformEstimate        `json:"reform,omitempty"`
	ReformError string                       `json:"reform_error,omitempty"`
	Feasibility *model.FeasibilityResult     `json:"feasibility,omitempty"`
}

// Analyze estimates the sale price, then the reform cost, then combines
// them. A sale estimation failure fails the whole call; a missing cost
// profile only drops the reform and feasibility parts.
func Analyze(req Request, in Inputs) (*Result, error) {
	req = normalize(req)

	hash, err := InputHash(req, in)
	if err != nil {
		return nil, err
	}

	sale, err := estimate.Estimate(req.Target, in.Comparables, in.Zones, req.Options)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: estimate sale price")
	}

	res := &Result{InputHash: hash, Sale: sale}

	reform, err := cost.NewCalculator(in.Costs).Estimate(req.Target.Surface, req.ReformCategory, req.ReformQuality, req.Target.Zone)
	if err != nil {
		zap.L().Warn("analysis: reform cost unavailable",
			zap.String("reference", req.Target.Reference),
			zap.Error(err),
		)
		res.ReformError = err.Error()
		return res, nil
	}
	res.Reform = reform
	res.Feasibility = feasibility.Combine(sale, reform, req.PurchasePrice, req.Thresholds)

	zap.L().Info("analysis: completed",
		zap.String("reference", req.Target.Reference),
		zap.String("input_hash", hash),
		zap.Float64("avg_price", sale.AvgPrice),
		zap.Int("confidence", sale.Confidence),
		zap.Float64("reform_cost", reform.TotalCost),
		zap.Bool("viable", res.Feasibility.Viable),
	)

	return res, nil
}

// normalize fills the reform defaults and pins the evaluation date to the
// start of the current UTC day so repeated analyses hash identically.
func normalize(req Request) Request {
	if req.ReformCategory == "" {
		req.ReformCategory = model.ReformIntegral
	}
	if req.ReformQuality == "" {
		req.ReformQuality = model.QualityMedium
	}
	if req.Thresholds == (feasibility.Thresholds{}) {
		req.Thresholds = feasibility.DefaultThresholds()
	}
	if req.Options.Now.IsZero() {
		req.Options.Now = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return req
}

type hashInput struct {
	Request     Request                    `json:"request"`
	Now         time.Time                  `json:"now"`
	Comparables []model.Comparable         `json:"comparables"`
	Zones       map[string]model.ZoneStats `json:"zones"`
	Costs       []model.ReformCostProfile  `json:"costs"`
}

// InputHash returns the hex SHA-256 of the canonical JSON encoding of an
// analysis input. Only comparables eligible at the evaluation date are
// hashed, and their order does not affect the hash.
func InputHash(req Request, in Inputs) (string, error) {
	req = normalize(req)
	pool := comparables.Eligible(in.Comparables, req.Options.Now, req.Options.RecencyDays)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })

	costs := in.Costs
	if costs == nil {
		costs = cost.DefaultTable()
	}

	data, err := json.Marshal(hashInput{
		Request:     req,
		Now:         req.Options.Now.UTC(),
		Comparables: pool,
		Zones:       in.Zones,
		Costs:       costs.Profiles,
	})
	if err != nil {
		return "", eris.Wrap(err, "analysis: encode input")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
