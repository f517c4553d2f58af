package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/analysis"
	"github.com/sells-group/flip-estimator/internal/config"
	"github.com/sells-group/flip-estimator/internal/cost"
	"github.com/sells-group/flip-estimator/internal/estimate"
	"github.com/sells-group/flip-estimator/internal/feasibility"
	"github.com/sells-group/flip-estimator/internal/ingest"
	"github.com/sells-group/flip-estimator/internal/model"
	"github.com/sells-group/flip-estimator/internal/resilience"
	"github.com/sells-group/flip-estimator/internal/store"
)

// engine holds what a command needs to run estimations: the comparables
// source, the reform cost table and the engine settings.
type engine struct {
	store  store.Store     // nil when comparables come from a file
	loader *store.Loader   // nil when comparables come from a file
	fixed  *store.Snapshot // comparables read from --comparables
	costs  *cost.Table
	cfg    config.EngineConfig
	now    func() time.Time
}

// engineOptions selects where comparables come from.
type engineOptions struct {
	Mode            string // config validation mode
	ComparablesPath string // read comparables from a CSV/XLSX file instead of the store
	Sheet           string
	NeedStore       bool // open the store even in file mode (e.g. --save)
}

// openEngine validates configuration for the mode and wires the store and
// cost table.
func openEngine(ctx context.Context, c *config.Config, opts engineOptions) (*engine, error) {
	if err := c.Validate(opts.Mode); err != nil {
		return nil, err
	}

	costs, err := loadCostTable(c.Costs)
	if err != nil {
		return nil, err
	}

	e := &engine{costs: costs, cfg: c.Engine, now: today}

	if opts.ComparablesPath != "" {
		rows, err := ingest.ReadFile(opts.ComparablesPath, ingest.XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, err
		}
		res, err := ingest.Parse(rows, opts.ComparablesPath)
		if err != nil {
			return nil, err
		}
		e.fixed = &store.Snapshot{Comparables: res.Comparables, Zones: ingest.ZoneStats(res.Comparables)}
	}

	if opts.ComparablesPath == "" || opts.NeedStore {
		st, err := openStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		retry := resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
		e.store = st
		e.loader = store.NewLoader(st, c.Store.Driver, retry)
	}
	return e, nil
}

// openStore opens the configured store. SQLite schemas are created on
// open; Postgres requires an explicit migrate.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := store.Open(ctx, sc.Driver, sc.DatabaseURL, poolConfig(sc))
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if sc.Driver == "sqlite" || sc.Driver == "" {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate sqlite")
		}
	}
	return st, nil
}

func poolConfig(sc config.StoreConfig) *store.PoolConfig {
	return &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns}
}

// loadCostTable returns the built-in table, extended with the configured
// override file when set.
func loadCostTable(cc config.CostsConfig) (*cost.Table, error) {
	table := cost.DefaultTable()
	if cc.TablePath == "" {
		return table, nil
	}
	extra, err := cost.LoadTable(cc.TablePath)
	if err != nil {
		return nil, err
	}
	return table.Merge(extra.Profiles), nil
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// Close releases the store.
func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *engine) options() estimate.Options {
	return estimate.Options{
		MaxRadius:       e.cfg.MaxRadiusM,
		MinComparables:  e.cfg.MinComparables,
		TargetMarginPct: e.cfg.TargetMarginPct,
		RecencyDays:     e.cfg.RecencyDays,
		MaxResults:      e.cfg.MaxResults,
		Now:             e.now(),
	}
}

func (e *engine) thresholds() feasibility.Thresholds {
	return feasibility.Thresholds{
		MinProfit:     e.cfg.MinProfit,
		MinROIPct:     e.cfg.MinROIPct,
		MinConfidence: e.cfg.MinConfidence,
	}
}

// snapshot returns the comparables, zone statistics and stored cost
// profiles relevant to target. The store is searched over twice the
// configured radius so the engine's radius expansion has data.
func (e *engine) snapshot(ctx context.Context, target model.TargetProperty, opts estimate.Options) (*store.Snapshot, error) {
	if e.fixed != nil {
		return e.fixed, nil
	}
	if e.loader == nil {
		return nil, eris.New("no comparables source configured")
	}
	return e.loader.Load(ctx, store.LoadRequest{
		Target:      target,
		RadiusM:     2 * opts.MaxRadius,
		RecencyDays: opts.RecencyDays,
		Now:         opts.Now,
	})
}

// Estimate prices target in its reformed state.
func (e *engine) Estimate(ctx context.Context, target model.TargetProperty) (*model.PriceEstimationResult, error) {
	opts := e.options()
	snap, err := e.snapshot(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	return estimate.Estimate(target, snap.Comparables, snap.Zones, opts)
}

// Reform prices a reform. Empty category or quality use the configured
// defaults.
func (e *engine) Reform(surface float64, category, quality, zone string) (*model.ReformEstimate, error) {
	cat, qual, err := e.reformChoice(category, quality)
	if err != nil {
		return nil, err
	}
	return cost.NewCalculator(e.costs).Estimate(surface, cat, qual, zone)
}

func (e *engine) reformChoice(category, quality string) (model.ReformCategory, model.ReformQuality, error) {
	if category == "" {
		category = e.cfg.ReformCategory
	}
	if quality == "" {
		quality = e.cfg.ReformQuality
	}
	cat, err := model.ParseReformCategory(category)
	if err != nil {
		return "", "", err
	}
	qual, err := model.ParseReformQuality(quality)
	if err != nil {
		return "", "", err
	}
	return cat, qual, nil
}

// analyzeInput is the body of an analysis request.
type analyzeInput struct {
	Target         model.TargetProperty `json:"target"`
	PurchasePrice  float64              `json:"purchase_price,omitempty"`
	ReformCategory string               `json:"reform_category,omitempty"`
	ReformQuality  string               `json:"reform_quality,omitempty"`
}

// Analyze runs a full flip analysis for in.
func (e *engine) Analyze(ctx context.Context, in analyzeInput) (*analysis.Result, error) {
	cat, qual, err := e.reformChoice(in.ReformCategory, in.ReformQuality)
	if err != nil {
		return nil, err
	}

	opts := e.options()
	snap, err := e.snapshot(ctx, in.Target, opts)
	if err != nil {
		return nil, err
	}

	req := analysis.Request{
		Target:         in.Target,
		PurchasePrice:  in.PurchasePrice,
		ReformCategory: cat,
		ReformQuality:  qual,
		Options:        opts,
		Thresholds:     e.thresholds(),
	}
	return analysis.Analyze(req, analysis.Inputs{
		Comparables: snap.Comparables,
		Zones:       snap.Zones,
		Costs:       e.costs.Merge(snap.CostProfiles),
	})
}

// Save persists res unless an analysis with the same input hash is already
// stored, in which case the existing ID is returned.
func (e *engine) Save(ctx context.Context, reference string, res *analysis.Result) (string, error) {
	if e.store == nil {
		return "", eris.New("saving requires a store")
	}

	existing, err := e.store.FindEstimationByHash(ctx, res.InputHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		zap.L().Debug("analysis already saved", zap.String("id", existing.ID))
		return existing.ID, nil
	}

	body, err := json.Marshal(res)
	if err != nil {
		return "", eris.Wrap(err, "marshal analysis")
	}
	return e.store.SaveEstimation(ctx, store.EstimationRecord{
		Reference: reference,
		InputHash: res.InputHash,
		Result:    body,
	})
}

// GetEstimation reads a saved analysis.
func (e *engine) GetEstimation(ctx context.Context, id string) (*store.EstimationRecord, error) {
	if e.loader == nil {
		return nil, eris.New("reading analyses requires a store")
	}
	return e.loader.GetEstimation(ctx, id)
}

// readJSON decodes path ("-" for stdin) into v.
func readJSON(stdin io.Reader, path string, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}

// writeOutput writes v as indented JSON or through text, per --output.
func writeOutput(w io.Writer, v any, text func(io.Writer) error) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		return text(w)
	default:
		return eris.Errorf("unknown output format %q", outputFormat)
	}
}
