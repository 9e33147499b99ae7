package assumption

import (
	"encoding/json"
	"fmt"

	"deal_engine/pkg/models"
)

// Edit is a partial update from the interactive editor. Nil fields are left
// unchanged.
type Edit struct {
	IndustryType       *models.IndustryType `json:"industry_type,omitempty"`
	PurchasePrice      *float64             `json:"purchase_price,omitempty"`
	DownPaymentPct     *float64             `json:"down_payment_pct,omitempty"`
	SellerFinancingPct *float64             `json:"seller_financing_pct,omitempty"`
	InterestRate       *float64             `json:"interest_rate,omitempty"`
	LoanTermYears      *int                 `json:"loan_term_years,omitempty"`
	RevenueGrowthRate  *float64             `json:"revenue_growth_rate,omitempty"`
	GrossMarginPct     *float64             `json:"gross_margin_pct,omitempty"`
	OpexPct            *float64             `json:"opex_pct,omitempty"`
	WorkingCapitalPct  *float64             `json:"working_capital_pct,omitempty"`
	CapexPct           *float64             `json:"capex_pct,omitempty"`
	TaxRate            *float64             `json:"tax_rate,omitempty"`
	DepreciationPct    *float64             `json:"depreciation_pct,omitempty"`
	CurrentOwnerComp   *float64             `json:"current_owner_comp,omitempty"`
	ExitYear           *int                 `json:"exit_year,omitempty"`
	ExitMultiple       *float64             `json:"exit_multiple,omitempty"`
	ClearExitMultiple  bool                 `json:"clear_exit_multiple,omitempty"`
}

// IsEmpty reports whether the edit changes nothing.
func (e Edit) IsEmpty() bool {
	return e == Edit{}
}

// Apply returns a new, validated assumption set. base is never modified; on
// error the caller keeps its previous set.
func Apply(base models.Assumptions, e Edit) (models.Assumptions, error) {
	next := base
	if base.ExitMultiple != nil {
		m := *base.ExitMultiple
		next.ExitMultiple = &m
	}

	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	if e.IndustryType != nil {
		next.IndustryType = *e.IndustryType
	}
	if e.PurchasePrice != nil && *e.PurchasePrice != base.PurchasePrice {
		next.PurchasePrice = *e.PurchasePrice
		next.PriceSource = models.PriceUserEdited
		next.PriceMethod = "Entered by user"
	}
	setF(&next.DownPaymentPct, e.DownPaymentPct)
	setF(&next.SellerFinancingPct, e.SellerFinancingPct)
	setF(&next.InterestRate, e.InterestRate)
	setI(&next.LoanTermYears, e.LoanTermYears)
	setF(&next.RevenueGrowthRate, e.RevenueGrowthRate)
	setF(&next.GrossMarginPct, e.GrossMarginPct)
	setF(&next.OpexPct, e.OpexPct)
	setF(&next.WorkingCapitalPct, e.WorkingCapitalPct)
	setF(&next.CapexPct, e.CapexPct)
	setF(&next.TaxRate, e.TaxRate)
	setF(&next.DepreciationPct, e.DepreciationPct)
	setF(&next.CurrentOwnerComp, e.CurrentOwnerComp)
	setI(&next.ExitYear, e.ExitYear)

	switch {
	case e.ClearExitMultiple:
		next.ExitMultiple = nil
	case e.ExitMultiple != nil:
		m := *e.ExitMultiple
		next.ExitMultiple = &m
	}

	if err := Validate(next); err != nil {
		return base, err
	}
	return next, nil
}

// FromJSON decodes and validates an assumption set sent by a client.
func FromJSON(data []byte) (models.Assumptions, error) {
	var a models.Assumptions
	if err := json.Unmarshal(data, &a); err != nil {
		return models.Assumptions{}, fmt.Errorf("%w: %v", ErrInvalidAssumptions, err)
	}
	if err := Validate(a); err != nil {
		return models.Assumptions{}, err
	}
	return a, nil
}
