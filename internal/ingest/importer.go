package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/cost"
	"github.com/sells-group/flip-estimator/internal/resilience"
	"github.com/sells-group/flip-estimator/internal/store"
)

const defaultBatchSize = 500

// Importer writes parsed exports into a store.
type Importer struct {
	Store     store.Store
	Retry     resilience.RetryConfig
	BatchSize int
}

// Summary reports what an import did.
type Summary struct {
	File     string     `json:"file"`
	Parsed   int        `json:"parsed"`
	Upserted int        `json:"upserted"`
	Skipped  []RowError `json:"-"`
	DryRun   bool       `json:"dry_run"`
}

// ImportComparables parses a CSV/XLSX export and upserts its rows in
// batches. With dryRun set nothing is written.
func (im *Importer) ImportComparables(ctx context.Context, path string, opts XLSXOptions, source string, dryRun bool) (*Summary, error) {
	rows, err := ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	res, err := Parse(rows, source)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}

	sum := &Summary{File: path, Parsed: len(res.Comparables), Skipped: res.Skipped, DryRun: dryRun}
	if dryRun || len(res.Comparables) == 0 {
		return sum, nil
	}

	size := im.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	cfg := im.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("import", "upsert_comparables")
	}

	for start := 0; start < len(res.Comparables); start += size {
		end := min(start+size, len(res.Comparables))
		batch := res.Comparables[start:end]
		n, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
			return im.Store.UpsertComparables(ctx, batch)
		})
		if err != nil {
			return sum, eris.Wrapf(err, "ingest: upsert batch %d-%d", start, end)
		}
		sum.Upserted += n
	}

	zap.L().Info("ingest: comparables imported",
		zap.String("file", path),
		zap.Int("parsed", sum.Parsed),
		zap.Int("upserted", sum.Upserted),
		zap.Int("skipped", len(sum.Skipped)),
	)
	return sum, nil
}

// ImportCostTable loads a YAML cost table and replaces the stored profiles
// with it.
func (im *Importer) ImportCostTable(ctx context.Context, path string) (int, error) {
	table, err := cost.LoadTable(path)
	if err != nil {
		return 0, err
	}

	cfg := im.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("import", "replace_cost_profiles")
	}
	n, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
		return im.Store.ReplaceCostProfiles(ctx, table.Profiles)
	})
	if err != nil {
		return 0, eris.Wrap(err, "ingest: replace cost profiles")
	}

	zap.L().Info("ingest: cost profiles imported", zap.String("file", path), zap.Int("profiles", n))
	return n, nil
}
