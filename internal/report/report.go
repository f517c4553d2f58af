// Package report renders analysis results as Spanish-language text.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/flip-estimator/internal/analysis"
	"github.com/sells-group/flip-estimator/internal/model"
)

// DefaultTopComparables is the number of comparables listed when Options
// does not say otherwise.
const DefaultTopComparables = 5

// Options controls report content.
type Options struct {
	TopComparables int
	Lang           language.Tag
}

// Formatter formats amounts for one locale.
type Formatter struct {
	p *message.Printer
}

// NewFormatter returns a formatter for tag. The zero tag means Spanish.
func NewFormatter(tag language.Tag) *Formatter {
	if tag == language.Und {
		tag = language.Spanish
	}
	return &Formatter{p: message.NewPrinter(tag)}
}

// Euros formats v rounded to whole euros with locale grouping.
func (f *Formatter) Euros(v float64) string {
	return f.p.Sprintf("%d €", int64(math.Round(v)))
}

// PerArea formats a euro-per-m² amount.
func (f *Formatter) PerArea(v float64) string {
	return f.p.Sprintf("%d €/m²", int64(math.Round(v)))
}

// Percent formats a percentage with one decimal.
func (f *Formatter) Percent(v float64) string {
	return f.p.Sprintf("%.1f %%", v)
}

// Write renders res to w.
func Write(w io.Writer, res *analysis.Result, opts Options) error {
	if opts.TopComparables <= 0 {
		opts.TopComparables = DefaultTopComparables
	}
	f := NewFormatter(opts.Lang)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if res.Sale != nil {
		writeSale(tw, f, res.Sale, opts.TopComparables)
	}
	if res.Reform != nil {
		writeReform(tw, f, res.Reform)
	} else if res.ReformError != "" {
		_, _ = fmt.Fprintf(tw, "\nREFORMA\nNo disponible:\t%s\n", res.ReformError)
	}
	if res.Feasibility != nil {
		writeFeasibility(tw, f, res.Feasibility)
	}
	if res.InputHash != "" {
		_, _ = fmt.Fprintf(tw, "\nHuella de entrada:\t%s\n", res.InputHash)
	}
	return tw.Flush()
}

// WriteSale renders only a price estimation.
func WriteSale(w io.Writer, sale *model.PriceEstimationResult, opts Options) error {
	return Write(w, &analysis.Result{Sale: sale}, opts)
}

// WriteReform renders only a reform estimate.
func WriteReform(w io.Writer, reform *model.ReformEstimate, opts Options) error {
	return Write(w, &analysis.Result{Reform: reform}, opts)
}

func writeSale(w io.Writer, f *Formatter, s *model.PriceEstimationResult, top int) {
	_, _ = fmt.Fprintln(w, "PRECIO DE VENTA (reformado)")
	_, _ = fmt.Fprintf(w, "Método:\t%s\n", methodLabel(s.Method))
	_, _ = fmt.Fprintf(w, "Rango:\t%s - %s\n", f.Euros(s.MinPrice), f.Euros(s.MaxPrice))
	_, _ = fmt.Fprintf(w, "Precio medio:\t%s (%s)\n", f.Euros(s.AvgPrice), f.PerArea(s.AvgPricePerArea))
	_, _ = fmt.Fprintf(w, "Margen:\t±%s\n", f.Percent(s.MarginPct))
	_, _ = fmt.Fprintf(w, "Confianza:\t%d/100\n", s.Confidence)
	if s.SearchRadius > 0 {
		_, _ = fmt.Fprintf(w, "Radio de búsqueda:\t%d m\n", int(s.SearchRadius))
	}
	for _, warn := range s.Warnings {
		_, _ = fmt.Fprintf(w, "Aviso:\t%s\n", warn)
	}
	for _, n := range s.Notes {
		_, _ = fmt.Fprintf(w, "Nota:\t%s\n", n)
	}

	if len(s.Comparables) == 0 {
		return
	}
	n := min(top, len(s.Comparables))
	_, _ = fmt.Fprintf(w, "\nCOMPARABLES (%d de %d)\n", n, len(s.Comparables))
	_, _ = fmt.Fprintln(w, "ID\tZONA\tM²\tDISTANCIA\tSIMILITUD\tPRECIO AJUSTADO\t€/M² AJUSTADO")
	for _, rc := range s.Comparables[:n] {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%.0f\t%s\t%s\n",
			rc.Comparable.ID,
			rc.Comparable.Zone,
			rc.Comparable.Surface,
			distanceLabel(rc.Distance),
			rc.Similarity,
			f.Euros(rc.AdjustedPrice),
			f.PerArea(rc.AdjustedPricePerArea),
		)
	}
}

func writeReform(w io.Writer, f *Formatter, r *model.ReformEstimate) {
	_, _ = fmt.Fprintf(w, "\nREFORMA (%s, calidad %s)\n", r.Category, r.Quality)
	_, _ = fmt.Fprintf(w, "Coste total:\t%s (%s - %s)\n", f.Euros(r.TotalCost), f.Euros(r.MinCost), f.Euros(r.MaxCost))
	_, _ = fmt.Fprintf(w, "Coste por m²:\t%s\n", f.PerArea(r.CostPerArea))
	_, _ = fmt.Fprintf(w, "Plazo:\t%d semanas (%s)\n", r.Timeline.Weeks, r.Timeline.Description)
	for _, b := range r.Breakdown {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", b.Item, f.Percent(b.Percent*100), f.Euros(b.Amount))
	}
	if len(r.ExcludedItems) > 0 {
		_, _ = fmt.Fprintf(w, "No incluye:\t%s\n", strings.Join(r.ExcludedItems, ", "))
	}
	for _, n := range r.Notes {
		_, _ = fmt.Fprintf(w, "Nota:\t%s\n", n)
	}
}

func writeFeasibility(w io.Writer, f *Formatter, fr *model.FeasibilityResult) {
	_, _ = fmt.Fprintln(w, "\nVIABILIDAD")
	if fr.PurchasePrice > 0 {
		_, _ = fmt.Fprintf(w, "Precio de compra:\t%s\n", f.Euros(fr.PurchasePrice))
	}
	_, _ = fmt.Fprintf(w, "Inversión total:\t%s\n", f.Euros(fr.TotalInvestment))
	_, _ = fmt.Fprintf(w, "Precio de venta:\t%s\n", f.Euros(fr.SalePrice))
	_, _ = fmt.Fprintf(w, "Beneficio:\t%s\n", f.Euros(fr.Profit))
	if fr.PurchasePrice > 0 {
		_, _ = fmt.Fprintf(w, "Rentabilidad:\t%s\n", f.Percent(fr.ROI))
	}
	verdict := "NO VIABLE"
	if fr.Viable {
		verdict = "VIABLE"
	}
	_, _ = fmt.Fprintf(w, "Veredicto:\t%s\n", verdict)
	for _, r := range fr.Reasons {
		_, _ = fmt.Fprintf(w, "  - %s\n", r)
	}
}

func methodLabel(m model.EstimationMethod) string {
	switch m {
	case model.MethodComparables:
		return "comparables"
	case model.MethodZoneAverage:
		return "media de zona"
	default:
		return string(m)
	}
}

func distanceLabel(d float64) string {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return "-"
	}
	return fmt.Sprintf("%d m", int(math.Round(d)))
}
