package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/flip-estimator/internal/ingest"
	"github.com/sells-group/flip-estimator/internal/report"
)

var (
	reformSurface  float64
	reformCategory string
	reformQuality  string
	reformZone     string
)

var reformCmd = &cobra.Command{
	Use:   "reform",
	Short: "Estimate the cost and duration of a reform",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if reformSurface <= 0 {
			return eris.New("--surface must be > 0")
		}
		if err := cfg.Validate("reform"); err != nil {
			return err
		}

		costs, err := loadCostTable(cfg.Costs)
		if err != nil {
			return err
		}
		eng := &engine{costs: costs, cfg: cfg.Engine, now: today}

		res, err := eng.Reform(reformSurface, reformCategory, reformQuality, ingest.NormalizeZone(reformZone))
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), res, func(w io.Writer) error {
			return report.WriteReform(w, res, report.Options{})
		})
	},
}

func init() {
	reformCmd.Flags().Float64Var(&reformSurface, "surface", 0, "surface in m² (required)")
	reformCmd.Flags().StringVar(&reformCategory, "category", "", "cosmetic, partial, integral or structural (default from config)")
	reformCmd.Flags().StringVar(&reformQuality, "quality", "", "basic, medium, high or luxury (default from config)")
	reformCmd.Flags().StringVar(&reformZone, "zone", "", "zone for zone-specific cost profiles")
	_ = reformCmd.MarkFlagRequired("surface")
	rootCmd.AddCommand(reformCmd)
}
