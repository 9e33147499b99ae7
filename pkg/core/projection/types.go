// Package projection builds the acquisition pro-forma: the first-pass
// debt-service summary and the authoritative multi-year model.
package projection

import (
	"deal_engine/pkg/core/calc"
	"deal_engine/pkg/models"
)

// ProjectedYear is one articulated year of the pro-forma.
type ProjectedYear struct {
	Year                 int
	Revenue              float64
	GrossProfit          float64
	Opex                 float64
	EBITDA               float64
	Depreciation         float64
	InterestExpense      float64
	EBT                  float64
	Tax                  float64
	NetIncome            float64
	WorkingCapital       float64 // running balance
	WorkingCapitalChange float64 // cash impact
	Capex                float64
	FreeCashFlow         float64
	CFADS                float64
	DebtService          float64
	CashAfterDebt        float64
	DSCR                 *float64 // nil when there is no debt service
	DebtBalance          float64
}

// Drivers are fixed for a projection run.
type Drivers struct {
	Assumptions         models.Assumptions
	BaseRevenue         float64
	OwnerCompAdjustment float64
	Loan                calc.Loan
}

// YearState is the only carried state of a run: the loan balance and the
// working-capital balance of the prior year.
type YearState struct {
	Debt           calc.Balance
	WorkingCapital float64
}

// OpeningState is the state before year 1.
func OpeningState(d Drivers) YearState {
	return YearState{
		Debt:           d.Loan.Start(),
		WorkingCapital: d.BaseRevenue * d.Assumptions.WorkingCapitalPct,
	}
}
