package valuation

import (
	"deal_engine/pkg/models"
)

// CapitalStack is the sources side of the acquisition.
type CapitalStack struct {
	PurchasePrice float64 `json:"purchase_price"`
	EquityCheck   float64 `json:"equity_check"`
	SeniorDebt    float64 `json:"senior_debt"`
	SellerNote    float64 `json:"seller_note"`

	// EntryMultiple is price over the latest positive EBITDA; 0 when unknown.
	EntryMultiple float64 `json:"entry_multiple"`
}

// BuildCapitalStack splits the price into equity, senior debt and the
// seller note. The seller note is on standby and carries no scheduled
// payments in the projection.
func BuildCapitalStack(a models.Assumptions, fs *models.FinancialStatement) CapitalStack {
	cs := CapitalStack{
		PurchasePrice: a.PurchasePrice,
		EquityCheck:   a.InitialInvestment(),
		SeniorDebt:    a.SeniorPrincipal(),
		SellerNote:    a.PurchasePrice * a.SellerFinancingPct,
	}
	if ebitda, _, ok := fs.LatestPositive(models.LineEBITDA); ok {
		cs.EntryMultiple = a.PurchasePrice / ebitda
	}
	return cs
}
