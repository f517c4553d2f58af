package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/flip-estimator/internal/model"
	"github.com/sells-group/flip-estimator/internal/report"
)

var (
	estimateTarget      string
	estimateComparables string
	estimateSheet       string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the reformed sale price of a property",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var target model.TargetProperty
		if err := readJSON(cmd.InOrStdin(), estimateTarget, &target); err != nil {
			return err
		}

		eng, err := openEngine(ctx, cfg, engineOptions{
			Mode:            "estimate",
			ComparablesPath: estimateComparables,
			Sheet:           estimateSheet,
		})
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		res, err := eng.Estimate(ctx, target)
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), res, func(w io.Writer) error {
			return report.WriteSale(w, res, report.Options{})
		})
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateTarget, "target", "-", "target property JSON file (- for stdin)")
	estimateCmd.Flags().StringVar(&estimateComparables, "comparables", "", "read comparables from a CSV/XLSX file instead of the store")
	estimateCmd.Flags().StringVar(&estimateSheet, "sheet", "", "worksheet name when --comparables is an XLSX file")
	rootCmd.AddCommand(estimateCmd)
}
