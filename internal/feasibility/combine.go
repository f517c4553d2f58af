// Package feasibility turns a sale estimate and a reform budget into a flip verdict.
package feasibility

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/model"
)

// Thresholds are the minimums a flip has to meet to be considered viable.
type Thresholds struct {
	MinProfit     float64 `json:"min_profit"`
	MinROIPct     float64 `json:"min_roi_pct"`
	MinConfidence int     `json:"min_confidence"`
}

// DefaultThresholds returns the stock viability thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinProfit:     20_000,
		MinROIPct:     15,
		MinConfidence: 50,
	}
}

// Combine merges the sale estimate, the reform estimate, and an optional
// purchase price (0 when unknown) into profit, ROI, and a viability verdict.
// Every unmet threshold adds one reason, in a fixed order.
func Combine(sale *model.PriceEstimationResult, reform *model.ReformEstimate, purchasePrice float64, th Thresholds) *model.FeasibilityResult {
	if purchasePrice < 0 || math.IsNaN(purchasePrice) {
		purchasePrice = 0
	}

	var reformCost float64
	if reform != nil {
		reformCost = reform.TotalCost
	}

	res := &model.FeasibilityResult{
		PurchasePrice:   purchasePrice,
		ReformCost:      reformCost,
		SalePrice:       sale.AvgPrice,
		TotalInvestment: purchasePrice + reformCost,
		Confidence:      sale.Confidence,
	}
	res.Profit = sale.AvgPrice - res.TotalInvestment
	if purchasePrice > 0 && res.TotalInvestment > 0 {
		res.ROI = res.Profit / res.TotalInvestment * 100
	}

	if res.Profit < th.MinProfit {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"Beneficio estimado de %.0f € por debajo del mínimo de %.0f €", res.Profit, th.MinProfit))
	}
	if purchasePrice > 0 && res.ROI < th.MinROIPct {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"Rentabilidad del %.1f%% por debajo del mínimo del %.1f%%", res.ROI, th.MinROIPct))
	}
	if sale.Confidence < th.MinConfidence {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"Confianza de la estimación (%d) inferior a la mínima exigida (%d)", sale.Confidence, th.MinConfidence))
	}
	res.Viable = len(res.Reasons) == 0

	zap.L().Debug("feasibility: combined",
		zap.Float64("total_investment", res.TotalInvestment),
		zap.Float64("profit", res.Profit),
		zap.Float64("roi", res.ROI),
		zap.Bool("viable", res.Viable),
	)

	return res
}
