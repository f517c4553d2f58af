package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/analysis"
	"github.com/sells-group/flip-estimator/internal/report"
)

var (
	analyzeTarget        string
	analyzePurchasePrice float64
	analyzeCategory      string
	analyzeQuality       string
	analyzeComparables   string
	analyzeSheet         string
	analyzeSave          bool
)

// analyzeOutput is the JSON shape of an analysis, with the saved ID when
// --save was given.
type analyzeOutput struct {
	ID string `json:"id,omitempty"`
	*analysis.Result
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full flip analysis: sale price, reform cost and viability",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in := analyzeInput{
			PurchasePrice:  analyzePurchasePrice,
			ReformCategory: analyzeCategory,
			ReformQuality:  analyzeQuality,
		}
		if err := readJSON(cmd.InOrStdin(), analyzeTarget, &in.Target); err != nil {
			return err
		}

		eng, err := openEngine(ctx, cfg, engineOptions{
			Mode:            "analyze",
			ComparablesPath: analyzeComparables,
			Sheet:           analyzeSheet,
			NeedStore:       analyzeSave,
		})
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		res, err := eng.Analyze(ctx, in)
		if err != nil {
			return err
		}

		out := analyzeOutput{Result: res}
		if analyzeSave {
			id, err := eng.Save(ctx, in.Target.Reference, res)
			if err != nil {
				return err
			}
			out.ID = id
			zap.L().Info("analysis saved", zap.String("id", id), zap.String("input_hash", res.InputHash))
		}

		return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
			return report.Write(w, res, report.Options{})
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target", "-", "target property JSON file (- for stdin)")
	analyzeCmd.Flags().Float64Var(&analyzePurchasePrice, "purchase-price", 0, "asking/purchase price in euros (0 if unknown)")
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "reform category (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeQuality, "quality", "", "reform quality (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeComparables, "comparables", "", "read comparables from a CSV/XLSX file instead of the store")
	analyzeCmd.Flags().StringVar(&analyzeSheet, "sheet", "", "worksheet name when --comparables is an XLSX file")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the analysis in the store")
	rootCmd.AddCommand(analyzeCmd)
}
