// Package knowledge holds the static industry reference tables used by the
// classifier, the assumption generator and the projector.
// Tables are immutable once loaded; callers receive copies.
package knowledge

import (
	"deal_engine/pkg/models"
)

// =============================================================================
// EXIT VALUATION PAIRS
// =============================================================================

// ExitMetric is the projected line an exit multiple is applied to.
type ExitMetric string

const (
	ExitOnEBITDA                ExitMetric = "ebitda"
	ExitOnRevenue               ExitMetric = "revenue"
	ExitOnCommissionIncomeProxy ExitMetric = "commission_income_proxy" // revenue stands in for commissions
	ExitOnARRProxy              ExitMetric = "arr_proxy"               // revenue stands in for ARR
)

// UsesRevenue reports whether the metric is read off projected revenue.
func (m ExitMetric) UsesRevenue() bool {
	return m == ExitOnRevenue || m == ExitOnCommissionIncomeProxy || m == ExitOnARRProxy
}

// ExitPair is the industry's default exit metric and multiple.
type ExitPair struct {
	Metric   ExitMetric `yaml:"metric" json:"metric"`
	Multiple float64    `yaml:"multiple" json:"multiple"`
}

// =============================================================================
// INDUSTRY DEFINITION
// =============================================================================

// IndustryDefinition is one row of the industry table.
type IndustryDefinition struct {
	Type              models.IndustryType     `yaml:"type"`
	Prefix            string                  `yaml:"prefix"` // canonical leading filename token
	Keywords          []string                `yaml:"keywords"`
	FinancialPatterns []string                `yaml:"financial_patterns"`
	SignatureLines    []models.LineItemKind   `yaml:"signature_lines"` // line items that only this industry reports
	Valuation         models.ValuationModel   `yaml:"valuation"`
	Financing         models.FinancingProfile `yaml:"financing"`
	GrowthRate        float64                 `yaml:"growth_rate"`
	GrossMargin       float64                 `yaml:"gross_margin"`
	EBITDAMargin      float64                 `yaml:"ebitda_margin"`
	CapexPct          float64                 `yaml:"capex_pct"`
	Exit              ExitPair                `yaml:"exit"`
}

func (d IndustryDefinition) clone() IndustryDefinition {
	out := d
	out.Keywords = append([]string(nil), d.Keywords...)
	out.FinancialPatterns = append([]string(nil), d.FinancialPatterns...)
	out.SignatureLines = append([]models.LineItemKind(nil), d.SignatureLines...)
	return out
}

// Fallbacks are the table-wide defaults used when an industry row or the
// source financials cannot supply a value.
type Fallbacks struct {
	EarningsMultiple  float64 `yaml:"earnings_multiple"`
	RevenueMultiple   float64 `yaml:"revenue_multiple"`
	RevenueDiscount   float64 `yaml:"revenue_discount"` // haircut on the last-resort revenue exit
	EBITDAMargin      float64 `yaml:"ebitda_margin"`
	WorkingCapitalPct float64 `yaml:"working_capital_pct"`
	TaxRate           float64 `yaml:"tax_rate"`
	DepreciationPct   float64 `yaml:"depreciation_pct"`
	ExitYear          int     `yaml:"exit_year"`
}

// document is the YAML shape of the tables.
type document struct {
	Fallback   Fallbacks            `yaml:"fallback"`
	Industries []IndustryDefinition `yaml:"industries"`
}
