package models

import (
	"sort"
)

// LineItemKind names a row of an extracted financial statement.
type LineItemKind string

const (
	LineRevenue           LineItemKind = "revenue"
	LineCostOfRevenue     LineItemKind = "costOfRevenue"
	LineGrossProfit       LineItemKind = "grossProfit"
	LineOperatingExpenses LineItemKind = "operatingExpenses"
	LineEBITDA            LineItemKind = "ebitda"
	LineAdjustedEBITDA    LineItemKind = "adjustedEbitda"
	LineRecastEBITDA      LineItemKind = "recastEbitda"
	LineSDE               LineItemKind = "sde"
	LineNetIncome         LineItemKind = "netIncome"
	LineCommissionIncome  LineItemKind = "commissionIncome"
	LineCashFlow          LineItemKind = "cashFlow"
	LineOwnerComp         LineItemKind = "ownerCompensation"
)

// SyntheticPeriod is the label assumed when a statement carries no periods.
const SyntheticPeriod = "TTM"

// FinancialStatement is the extraction collaborators' view of the target's
// history. A nil amount means "unknown" and is never read as zero in a ratio.
type FinancialStatement struct {
	Periods   []string                             `json:"periods"`
	LineItems map[LineItemKind]map[string]*float64 `json:"line_items"`
}

// NewFinancialStatement creates an empty statement over the given periods.
func NewFinancialStatement(periods ...string) *FinancialStatement {
	return &FinancialStatement{
		Periods:   periods,
		LineItems: make(map[LineItemKind]map[string]*float64),
	}
}

// Set records an amount for a line item and period, appending the period if
// it is new.
func (fs *FinancialStatement) Set(kind LineItemKind, period string, amount float64) {
	if fs.LineItems == nil {
		fs.LineItems = make(map[LineItemKind]map[string]*float64)
	}
	row, ok := fs.LineItems[kind]
	if !ok {
		row = make(map[string]*float64)
		fs.LineItems[kind] = row
	}
	v := amount
	row[period] = &v

	for _, p := range fs.Periods {
		if p == period {
			return
		}
	}
	fs.Periods = append(fs.Periods, period)
}

// Value returns the amount for a line item in a period.
func (fs *FinancialStatement) Value(kind LineItemKind, period string) (float64, bool) {
	if fs == nil {
		return 0, false
	}
	row, ok := fs.LineItems[kind]
	if !ok {
		return 0, false
	}
	v, ok := row[period]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// OrderedPeriods returns the periods oldest-first. An empty Periods sequence
// falls back to the sorted union of labels found in the line items, and then
// to SyntheticPeriod.
func (fs *FinancialStatement) OrderedPeriods() []string {
	if fs == nil {
		return []string{SyntheticPeriod}
	}
	if len(fs.Periods) > 0 {
		return fs.Periods
	}

	seen := make(map[string]bool)
	for _, row := range fs.LineItems {
		for p := range row {
			seen[p] = true
		}
	}
	if len(seen) == 0 {
		return []string{SyntheticPeriod}
	}
	labels := make([]string, 0, len(seen))
	for p := range seen {
		labels = append(labels, p)
	}
	// "2021" < "2022" < "TTM" under byte order.
	sort.Strings(labels)
	return labels
}

// Latest returns the most recent known amount of a line item together with
// the period it came from.
func (fs *FinancialStatement) Latest(kind LineItemKind) (float64, string, bool) {
	periods := fs.OrderedPeriods()
	for i := len(periods) - 1; i >= 0; i-- {
		if v, ok := fs.Value(kind, periods[i]); ok {
			return v, periods[i], true
		}
	}
	return 0, "", false
}

// LatestPositive is Latest restricted to strictly positive amounts.
func (fs *FinancialStatement) LatestPositive(kind LineItemKind) (float64, string, bool) {
	v, p, ok := fs.Latest(kind)
	if !ok || v <= 0 {
		return 0, "", false
	}
	return v, p, true
}

// HasData reports whether any line item carries a known amount.
func (fs *FinancialStatement) HasData() bool {
	if fs == nil {
		return false
	}
	for _, row := range fs.LineItems {
		for _, v := range row {
			if v != nil {
				return true
			}
		}
	}
	return false
}

// ExtractedPurchasePrice is an asking price found by the extraction
// collaborators, e.g. in a broker teaser.
type ExtractedPurchasePrice struct {
	Amount           float64 `json:"amount"`
	SourceConfidence float64 `json:"source_confidence"` // 0..1
	DocumentSourced  bool    `json:"document_sourced"`
	Source           string  `json:"source,omitempty"` // e.g. "CIM p.3"
}
