package projection

import (
	"fmt"

	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/models"
)

const (
	// Market owner salary is 15% of revenue, capped.
	marketOwnerCompShare = 0.15
	marketOwnerCompCap   = 300_000

	// First-pass capex proxy used by the debt-service summary.
	summaryCapexShare = 0.02
)

// ebitdaLines are read in this order when a statement carries several.
var ebitdaLines = []models.LineItemKind{
	models.LineEBITDA,
	models.LineAdjustedEBITDA,
	models.LineRecastEBITDA,
}

// BaseRevenue returns the latest reported revenue. Without it, revenue is
// inferred from the latest EBITDA at the industry margin; with neither the
// base is 0. note is empty when revenue was reported.
func BaseRevenue(fs *models.FinancialStatement, def knowledge.IndustryDefinition, fb knowledge.Fallbacks) (revenue float64, note string) {
	if r, _, ok := fs.LatestPositive(models.LineRevenue); ok {
		return r, ""
	}

	margin := marginOrFallback(def, fb)
	for _, line := range ebitdaLines {
		if e, period, ok := fs.LatestPositive(line); ok && margin > 0 {
			return e / margin, fmt.Sprintf("No revenue reported; base revenue inferred from %s %s at a %.0f%% margin", period, line, margin*100)
		}
	}
	return 0, "No revenue or EBITDA reported; projecting from zero revenue"
}

// MarginRate is the latest reported EBITDA margin, or the industry margin
// when revenue or EBITDA is unknown or the ratio is outside [0, 1].
func MarginRate(fs *models.FinancialStatement, def knowledge.IndustryDefinition, fb knowledge.Fallbacks) float64 {
	if revenue, _, ok := fs.LatestPositive(models.LineRevenue); ok {
		for _, line := range ebitdaLines {
			if e, _, found := fs.Latest(line); found {
				if m := e / revenue; m >= 0 && m <= 1 {
					return m
				}
			}
		}
	}
	return marginOrFallback(def, fb)
}

func marginOrFallback(def knowledge.IndustryDefinition, fb knowledge.Fallbacks) float64 {
	if def.EBITDAMargin > 0 {
		return def.EBITDAMargin
	}
	return fb.EBITDAMargin
}

// OwnerCompAdjustment is the above-market part of the owner's salary, added
// back to opex every year.
//
// FORMULA: adjustment = ownerComp - min(baseRevenue × 15%, 300,000)
//
// Zero when no owner compensation is known.
func OwnerCompAdjustment(ownerComp, baseRevenue float64) float64 {
	if ownerComp <= 0 {
		return 0
	}
	market := baseRevenue * marketOwnerCompShare
	if market > marketOwnerCompCap {
		market = marketOwnerCompCap
	}
	return ownerComp - market
}
