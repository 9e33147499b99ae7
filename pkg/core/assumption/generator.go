// Package assumption turns extracted financials and a business profile into a
// concrete, validated assumption set, and applies user edits to it.
package assumption

import (
	"fmt"
	"math"

	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/models"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ManualInputMethod is recorded when no price can be derived.
const ManualInputMethod = "No usable financial data; manual input required"

// =============================================================================
// PRICE CANDIDATES
// Evaluated in priority order; the first one with a positive latest value wins.
// =============================================================================

type basis int

const (
	earningsBasis basis = iota
	revenueBasis
)

type candidate struct {
	line  models.LineItemKind
	label string
	basis basis
}

var (
	sdeCandidate        = candidate{models.LineSDE, "SDE", earningsBasis}
	recastCandidate     = candidate{models.LineRecastEBITDA, "recast EBITDA", earningsBasis}
	adjustedCandidate   = candidate{models.LineAdjustedEBITDA, "adjusted EBITDA", earningsBasis}
	ebitdaCandidate     = candidate{models.LineEBITDA, "EBITDA", earningsBasis}
	commissionCandidate = candidate{models.LineCommissionIncome, "commission income", revenueBasis}
	arrProxyCandidate   = candidate{models.LineRevenue, "ARR proxy (revenue)", revenueBasis}
	revenueCandidate    = candidate{models.LineRevenue, "revenue", revenueBasis}
)

// priority is SDE > recast EBITDA > adjusted EBITDA > EBITDA > commission
// income > ARR proxy > revenue.
var priority = []candidate{
	sdeCandidate,
	recastCandidate,
	adjustedCandidate,
	ebitdaCandidate,
	commissionCandidate,
	arrProxyCandidate,
	revenueCandidate,
}

// PriceEstimate is the tagged result of the price chain.
type PriceEstimate struct {
	Value    float64             `json:"value"`
	Multiple float64             `json:"multiple"`
	Period   string              `json:"period,omitempty"`
	Line     models.LineItemKind `json:"line,omitempty"`
	Method   string              `json:"method"`
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator builds default assumptions from static tables. It holds no
// mutable state and is safe for concurrent use.
type Generator struct {
	tables *knowledge.Tables
	logger *zap.Logger
}

// NewGenerator creates a generator over the given tables.
func NewGenerator(tables *knowledge.Tables, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{tables: tables, logger: logger}
}

// Generate derives a full assumption set. A document-sourced extracted price
// is used verbatim; otherwise the price is estimated from the best available
// earnings or revenue line. The only error is a validation failure.
func (g *Generator) Generate(fs *models.FinancialStatement, profile models.BusinessProfile, extracted *models.ExtractedPurchasePrice) (models.Assumptions, error) {
	def := g.tables.Lookup(profile.IndustryType)
	fb := g.tables.Fallback()
	fin := profile.FinancingProfile

	a := models.Assumptions{
		IndustryType:       def.Type,
		DownPaymentPct:     fin.DownPaymentPct,
		SellerFinancingPct: fin.SellerFinancingPct,
		InterestRate:       fin.InterestRate,
		LoanTermYears:      fin.LoanTermYears,
		RevenueGrowthRate:  def.GrowthRate,
		GrossMarginPct:     def.GrossMargin,
		WorkingCapitalPct:  fb.WorkingCapitalPct,
		CapexPct:           def.CapexPct,
		TaxRate:            fb.TaxRate,
		DepreciationPct:    fb.DepreciationPct,
		ExitYear:           fb.ExitYear,
	}

	margin, marginSource := g.ebitdaMargin(fs, def)
	a.OpexPct = math.Max(0, a.GrossMarginPct-margin)

	if comp, _, ok := fs.LatestPositive(models.LineOwnerComp); ok {
		a.CurrentOwnerComp = comp
	}

	if extracted != nil && extracted.DocumentSourced && extracted.Amount > 0 {
		a.PurchasePrice = extracted.Amount
		a.PriceSource = models.PriceExtracted
		a.PriceMethod = "Asking price from source document"
		if extracted.Source != "" {
			a.PriceMethod += " (" + extracted.Source + ")"
		}
	} else {
		est := g.EstimatePrice(fs, profile)
		a.PurchasePrice = est.Value
		a.PriceSource = models.PriceEstimated
		a.PriceMethod = est.Method
	}

	g.logger.Debug("[ASSUMPTIONS] Generated",
		zap.String("industry", string(a.IndustryType)),
		zap.Float64("purchase_price", a.PurchasePrice),
		zap.String("price_method", a.PriceMethod),
		zap.String("margin_source", marginSource))

	if err := Validate(a); err != nil {
		return models.Assumptions{}, err
	}
	return a, nil
}

// EstimatePrice walks the priority chain and prices the first line with a
// positive latest value at the profile's default multiple. ARR proxy stands in
// for revenue when the profile is priced on revenue. A profile without a
// default multiple falls back to the table-wide multiple for the line's basis.
func (g *Generator) EstimatePrice(fs *models.FinancialStatement, profile models.BusinessProfile) PriceEstimate {
	if !fs.HasData() {
		return PriceEstimate{Method: ManualInputMethod}
	}

	revenuePriced := profile.ValuationModel.PrimaryMetric == models.MetricRevenue
	defaultMultiple := profile.ValuationModel.MultipleRange.Default
	fb := g.tables.Fallback()

	multipleFor := func(c candidate) (float64, string) {
		switch {
		case defaultMultiple > 0:
			return defaultMultiple, string(profile.IndustryType) + " default"
		case c.basis == revenueBasis:
			return fb.RevenueMultiple, "fallback revenue multiple"
		default:
			return fb.EarningsMultiple, "fallback earnings multiple"
		}
	}

	for _, c := range priority {
		if c == arrProxyCandidate && !revenuePriced {
			continue
		}
		if c == revenueCandidate && revenuePriced {
			continue
		}
		value, period, ok := fs.LatestPositive(c.line)
		if !ok {
			continue
		}
		multiple, why := multipleFor(c)
		return PriceEstimate{
			Value:    value * multiple,
			Multiple: multiple,
			Period:   period,
			Line:     c.line,
			Method:   fmt.Sprintf("%s %s %s × %.2fx (%s)", period, c.label, FormatDollars(value), multiple, why),
		}
	}

	return PriceEstimate{Method: ManualInputMethod}
}

// ebitdaMargin prefers the latest reported margin and falls back to the
// industry table.
func (g *Generator) ebitdaMargin(fs *models.FinancialStatement, def knowledge.IndustryDefinition) (float64, string) {
	revenue, _, ok := fs.LatestPositive(models.LineRevenue)
	if ok {
		for _, line := range []models.LineItemKind{models.LineEBITDA, models.LineAdjustedEBITDA, models.LineRecastEBITDA} {
			if e, _, found := fs.Latest(line); found {
				m := e / revenue
				if m >= 0 && m <= 1 {
					return m, string(line)
				}
			}
		}
	}
	if def.EBITDAMargin > 0 {
		return def.EBITDAMargin, "industry table"
	}
	return g.tables.Fallback().EBITDAMargin, "fallback"
}

var dollarPrinter = message.NewPrinter(language.English)

// FormatDollars renders whole dollars with thousands separators.
func FormatDollars(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return "-$" + dollarPrinter.Sprintf("%d", -n)
	}
	return "$" + dollarPrinter.Sprintf("%d", n)
}
