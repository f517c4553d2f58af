package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/ingest"
	"github.com/sells-group/flip-estimator/internal/resilience"
)

var (
	importFile   string
	importSheet  string
	importSource string
	importDryRun bool
	importCosts  string
)

// importOutput reports both halves of an import.
type importOutput struct {
	Comparables  *ingest.Summary `json:"comparables,omitempty"`
	SkippedRows  []string        `json:"skipped_rows,omitempty"`
	CostProfiles int             `json:"cost_profiles,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import sold comparables (CSV/XLSX) and reform cost tables into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importFile == "" && importCosts == "" {
			return eris.New("--file or --costs is required")
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		im := &ingest.Importer{
			Store: st,
			Retry: resilience.FromConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs),
		}

		var out importOutput
		if importFile != "" {
			source := importSource
			if source == "" {
				source = importFile
			}
			sum, err := im.ImportComparables(ctx, importFile, ingest.XLSXOptions{SheetName: importSheet}, source, importDryRun)
			if err != nil {
				return eris.Wrap(err, "import comparables")
			}
			out.Comparables = sum
			for _, s := range sum.Skipped {
				out.SkippedRows = append(out.SkippedRows, s.Error())
			}
		}

		if importCosts != "" && !importDryRun {
			n, err := im.ImportCostTable(ctx, importCosts)
			if err != nil {
				return eris.Wrap(err, "import cost table")
			}
			out.CostProfiles = n
		}

		zap.L().Info("import complete", zap.String("file", importFile), zap.String("costs", importCosts))

		return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
			if s := out.Comparables; s != nil {
				_, _ = fmt.Fprintf(w, "%s: %d leídos, %d guardados, %d descartados\n", s.File, s.Parsed, s.Upserted, len(s.Skipped))
				for _, r := range out.SkippedRows {
					_, _ = fmt.Fprintf(w, "  %s\n", r)
				}
			}
			if out.CostProfiles > 0 {
				_, _ = fmt.Fprintf(w, "%s: %d perfiles de coste\n", importCosts, out.CostProfiles)
			}
			return nil
		})
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "CSV or XLSX file of sold comparables")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name for XLSX files (default first sheet)")
	importCmd.Flags().StringVar(&importSource, "source", "", "source label for rows without one (default file path)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and report without writing")
	importCmd.Flags().StringVar(&importCosts, "costs", "", "YAML reform cost table to store")
	rootCmd.AddCommand(importCmd)
}
