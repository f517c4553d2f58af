package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/sells-group/flip-estimator/internal/analysis"
	"github.com/sells-group/flip-estimator/internal/report"
)

var (
	batchTargets string
	batchLimit   int
	batchSave    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze many properties concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var items []analyzeInput
		if err := readJSON(cmd.InOrStdin(), batchTargets, &items); err != nil {
			return err
		}

		eng, err := openEngine(ctx, cfg, engineOptions{Mode: "batch"})
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		analyze := eng.Analyze
		if batchSave {
			analyze = saving(eng)
		}

		results, err := processBatch(ctx, items, batchLimit, cfg.Batch.MaxConcurrent, analyze)
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), results, func(w io.Writer) error {
			return writeBatchTable(w, results)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchTargets, "targets", "-", "JSON array of analysis requests (- for stdin)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of targets to process")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist each analysis in the store")
	rootCmd.AddCommand(batchCmd)
}

// analyzeFunc is the callback signature for analyzing one target.
type analyzeFunc func(ctx context.Context, in analyzeInput) (*analysis.Result, error)

// batchResult is the outcome for one target, in input order.
type batchResult struct {
	Index     int              `json:"index"`
	Reference string           `json:"reference,omitempty"`
	Result    *analysis.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// saving wraps the engine's Analyze so each successful result is persisted.
func saving(eng *engine) analyzeFunc {
	return func(ctx context.Context, in analyzeInput) (*analysis.Result, error) {
		res, err := eng.Analyze(ctx, in)
		if err != nil {
			return nil, err
		}
		if _, err := eng.Save(ctx, in.Target.Reference, res); err != nil {
			return nil, eris.Wrap(err, "save analysis")
		}
		return res, nil
	}
}

// processBatch applies limit, then analyzes items concurrently. A failed
// item is recorded in its result and does not abort the batch.
func processBatch(ctx context.Context, items []analyzeInput, limit, concurrency int, analyze analyzeFunc) ([]batchResult, error) {
	if len(items) == 0 {
		zap.L().Info("no targets to analyze")
		return nil, nil
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("targets", len(items)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]batchResult, len(items))
	var succeeded, failed atomic.Int64

	for i, item := range items {
		results[i] = batchResult{Index: i, Reference: item.Target.Reference}
		g.Go(func() error {
			log := zap.L().With(zap.Int("index", i), zap.String("reference", item.Target.Reference))

			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := analyze(gctx, item)
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				log.Error("analysis failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			results[i].Result = res
			log.Debug("analysis complete", zap.String("input_hash", res.InputHash))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

func writeBatchTable(out io.Writer, results []batchResult) error {
	f := report.NewFormatter(language.Spanish)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tREFERENCIA\tPRECIO VENTA\tCONFIANZA\tREFORMA\tBENEFICIO\tVIABLE\tERROR")

	for _, r := range results {
		if r.Result == nil {
			_, _ = fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\t-\t%s\n", r.Index, r.Reference, r.Error)
			continue
		}
		sale, conf, reform, profit, viable := "-", "-", "-", "-", "-"
		if s := r.Result.Sale; s != nil {
			sale = f.Euros(s.AvgPrice)
			conf = fmt.Sprintf("%d", s.Confidence)
		}
		if r.Result.Reform != nil {
			reform = f.Euros(r.Result.Reform.TotalCost)
		}
		if fr := r.Result.Feasibility; fr != nil {
			profit = f.Euros(fr.Profit)
			viable = "no"
			if fr.Viable {
				viable = "sí"
			}
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Index, r.Reference, sale, conf, reform, profit, viable, r.Result.ReformError)
	}
	return w.Flush()
}
