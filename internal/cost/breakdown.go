package cost

import (
	"fmt"

	"github.com/sells-group/flip-estimator/internal/model"
)

type share struct {
	item    string
	percent float64
}

// breakdowns holds the fixed work-item split per category. Each sums to 1.
var breakdowns = map[model.ReformCategory][]share{
	model.ReformCosmetic: {
		{"pintura", 0.35},
		{"suelos", 0.30},
		{"carpintería", 0.15},
		{"electricidad", 0.10},
		{"limpieza", 0.05},
		{"imprevistos", 0.05},
	},
	model.ReformPartial: {
		{"cocina", 0.30},
		{"baños", 0.25},
		{"suelos", 0.15},
		{"pintura", 0.10},
		{"electricidad", 0.08},
		{"fontanería", 0.07},
		{"imprevistos", 0.05},
	},
	model.ReformIntegral: {
		{"demolición", 0.15},
		{"electricidad", 0.12},
		{"fontanería", 0.12},
		{"cocina", 0.18},
		{"baños", 0.15},
		{"suelos", 0.12},
		{"carpintería", 0.08},
		{"pintura", 0.05},
		{"imprevistos", 0.03},
	},
	model.ReformStructural: {
		{"estructura", 0.30},
		{"demolición", 0.10},
		{"electricidad", 0.10},
		{"fontanería", 0.10},
		{"cocina", 0.12},
		{"baños", 0.10},
		{"suelos", 0.08},
		{"carpintería", 0.04},
		{"pintura", 0.03},
		{"imprevistos", 0.03},
	},
}

func breakdown(category model.ReformCategory, total float64) []model.BreakdownItem {
	shares := breakdowns[category]
	out := make([]model.BreakdownItem, 0, len(shares))
	for _, s := range shares {
		out = append(out, model.BreakdownItem{Item: s.item, Percent: s.percent, Amount: s.percent * total})
	}
	return out
}

type schedule struct {
	baseWeeks int
	stepWeeks int // added above each surface threshold
	label     string
}

var schedules = map[model.ReformCategory]schedule{
	model.ReformCosmetic:   {3, 1, "cosmética"},
	model.ReformPartial:    {6, 2, "parcial"},
	model.ReformIntegral:   {12, 4, "integral"},
	model.ReformStructural: {20, 6, "estructural"},
}

// timelineThresholds are the surfaces (m²) above which a reform takes longer.
var timelineThresholds = []float64{100, 200}

func timeline(category model.ReformCategory, surface float64) model.Timeline {
	s := schedules[category]
	weeks := s.baseWeeks
	for _, th := range timelineThresholds {
		if surface > th {
			weeks += s.stepWeeks
		}
	}
	return model.Timeline{
		Weeks:       weeks,
		Description: fmt.Sprintf("Reforma %s de %.0f m²: unas %d semanas", s.label, surface, weeks),
	}
}

// advisories lists the mandatory notes per category.
var advisories = map[model.ReformCategory][]string{
	model.ReformIntegral: {
		"Requiere licencia de obra del ayuntamiento",
		"Se recomienda proyecto técnico si se modifica la distribución",
	},
	model.ReformStructural: {
		"Requiere proyecto técnico visado por arquitecto",
		"Requiere licencia de obra mayor",
		"Puede requerir autorización de la comunidad de propietarios",
	},
}
