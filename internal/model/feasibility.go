package model

// FeasibilityResult combines the sale estimate and reform cost into a flip verdict.
type FeasibilityResult struct {
	PurchasePrice   float64  `json:"purchase_price"`
	ReformCost      float64  `json:"reform_cost"`
	SalePrice       float64  `json:"sale_price"`
	TotalInvestment float64  `json:"total_investment"`
	Profit          float64  `json:"profit"`
	ROI             float64  `json:"roi"` // percent
	Confidence      int      `json:"confidence"`
	Viable          bool     `json:"viable"`
	Reasons         []string `json:"reasons,omitempty"`
}
