package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/sells-group/flip-estimator/internal/analysis"
	"github.com/sells-group/flip-estimator/internal/model"
)

func sampleResult() *analysis.Result {
	comps := make([]model.RankedComparable, 7)
	for i := range comps {
		comps[i] = model.RankedComparable{
			Comparable:           model.Comparable{ID: string(rune('a' + i)), Attributes: model.Attributes{Surface: 90, Zone: "CENTRO"}},
			Distance:             float64(100 * (i + 1)),
			Similarity:           90,
			AdjustedPrice:        450000,
			AdjustedPricePerArea: 5000,
		}
	}
	return &analysis.Result{
		InputHash: "abc123",
		Sale: &model.PriceEstimationResult{
			Method:          model.MethodComparables,
			MinPrice:        418500,
			AvgPrice:        450000,
			MaxPrice:        481500,
			AvgPricePerArea: 5000,
			MarginPct:       7,
			Confidence:      85,
			SearchRadius:    1000,
			Comparables:     comps,
		},
		Reform: &model.ReformEstimate{
			Category:    model.ReformIntegral,
			Quality:     model.QualityMedium,
			TotalCost:   72000,
			MinCost:     61200,
			MaxCost:     82800,
			CostPerArea: 800,
			Timeline:    model.Timeline{Weeks: 12, Description: "reforma integral"},
			Breakdown:   []model.BreakdownItem{{Item: "demolición", Percent: 0.15, Amount: 10800}},
		},
		Feasibility: &model.FeasibilityResult{
			PurchasePrice:   300000,
			ReformCost:      72000,
			SalePrice:       450000,
			TotalInvestment: 372000,
			Profit:          78000,
			ROI:             20.97,
			Confidence:      85,
			Viable:          true,
		},
	}
}

func TestFormatter_Spanish(t *testing.T) {
	f := NewFormatter(language.Und)
	assert.Equal(t, "450.000 €", f.Euros(450000))
	assert.Equal(t, "1.234.568 €", f.Euros(1234567.6))
	assert.Equal(t, "18,5 %", f.Percent(18.48))
	assert.True(t, strings.HasSuffix(f.PerArea(5000), "€/m²"))
}

func TestFormatter_English(t *testing.T) {
	f := NewFormatter(language.English)
	assert.Equal(t, "1,234,567 €", f.Euros(1234567))
}

func TestWrite_FullAnalysis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), Options{}))
	out := buf.String()

	assert.Contains(t, out, "PRECIO DE VENTA")
	assert.Contains(t, out, "418.500 € - 481.500 €")
	assert.Contains(t, out, "85/100")
	assert.Contains(t, out, "COMPARABLES (5 de 7)")
	assert.Contains(t, out, "REFORMA (integral, calidad medium)")
	assert.Contains(t, out, "demolición")
	assert.Contains(t, out, "12 semanas")
	assert.Contains(t, out, "372.000 €")
	assert.Contains(t, out, "Veredicto:")
	assert.Contains(t, out, "VIABLE")
	assert.NotContains(t, out, "NO VIABLE")
	assert.Contains(t, out, "abc123")
}

func TestWrite_TopComparables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), Options{TopComparables: 2}))
	assert.Contains(t, buf.String(), "COMPARABLES (2 de 7)")
}

func TestWrite_ReformUnavailable(t *testing.T) {
	res := sampleResult()
	res.Reform = nil
	res.Feasibility = nil
	res.ReformError = "cost: no pricing data"

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, Options{}))
	out := buf.String()
	assert.Contains(t, out, "No disponible")
	assert.NotContains(t, out, "VIABILIDAD")
}

func TestWrite_NotViableUnknownPurchase(t *testing.T) {
	res := sampleResult()
	res.Feasibility.PurchasePrice = 0
	res.Feasibility.Viable = false
	res.Feasibility.Reasons = []string{"Confianza de la estimación insuficiente"}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, Options{}))
	out := buf.String()
	assert.Contains(t, out, "NO VIABLE")
	assert.NotContains(t, out, "Precio de compra")
	assert.NotContains(t, out, "Rentabilidad:")
	assert.Contains(t, out, "- Confianza")
}

func TestWriteSaleAndReform(t *testing.T) {
	res := sampleResult()

	var sale bytes.Buffer
	require.NoError(t, WriteSale(&sale, res.Sale, Options{}))
	assert.Contains(t, sale.String(), "PRECIO DE VENTA")
	assert.NotContains(t, sale.String(), "REFORMA")

	var reform bytes.Buffer
	require.NoError(t, WriteReform(&reform, res.Reform, Options{}))
	assert.Contains(t, reform.String(), "REFORMA")
	assert.NotContains(t, reform.String(), "PRECIO DE VENTA")
}

func TestMethodAndDistanceLabels(t *testing.T) {
	assert.Equal(t, "media de zona", methodLabel(model.MethodZoneAverage))
	assert.Equal(t, "comparables", methodLabel(model.MethodComparables))
	assert.Equal(t, "-", distanceLabel(math.NaN()))
	assert.Equal(t, "250 m", distanceLabel(249.6))
}
