package projection

import (
	"fmt"
	"math"

	"deal_engine/pkg/core/assumption"
	"deal_engine/pkg/core/calc"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/core/valuation"
	"deal_engine/pkg/models"

	"go.uber.org/zap"
)

// MinHorizonYears is the shortest projection; a later exit year extends it.
const MinHorizonYears = 5

// Projector articulates the pro-forma for an assumption set. It holds only
// immutable tables and is safe for concurrent use; every call is an
// independent run.
type Projector struct {
	tables *knowledge.Tables
	logger *zap.Logger
}

// NewProjector creates a projector. A nil logger disables logging.
func NewProjector(tables *knowledge.Tables, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{tables: tables, logger: logger}
}

// SeniorLoan is the bank loan implied by the assumptions.
func SeniorLoan(a models.Assumptions) calc.Loan {
	return calc.Loan{
		Principal:  a.SeniorPrincipal(),
		AnnualRate: a.InterestRate,
		TermYears:  a.LoanTermYears,
	}
}

// Drivers derives the per-run constants from the statement.
func (p *Projector) Drivers(fs *models.FinancialStatement, a models.Assumptions) (Drivers, string) {
	def := p.tables.Lookup(a.IndustryType)
	base, note := BaseRevenue(fs, def, p.tables.Fallback())
	return Drivers{
		Assumptions:         a,
		BaseRevenue:         base,
		OwnerCompAdjustment: OwnerCompAdjustment(a.CurrentOwnerComp, base),
		Loan:                SeniorLoan(a),
	}, note
}

// ProjectYear computes one year from the prior state and returns the row
// together with the next state. It is pure: the same inputs always give the
// same row.
func ProjectYear(d Drivers, s YearState, year int) (ProjectedYear, YearState) {
	a := d.Assumptions
	row := ProjectedYear{Year: year}

	// 1-4. Operating line
	row.Revenue = d.BaseRevenue * math.Pow(1+a.RevenueGrowthRate, float64(year))
	row.GrossProfit = row.Revenue * a.GrossMarginPct
	row.Opex = row.Revenue*a.OpexPct - d.OwnerCompAdjustment
	row.EBITDA = row.GrossProfit - row.Opex

	// 5. Debt on the running balance
	payment, debt := d.Loan.Step(s.Debt, year)
	row.InterestExpense = payment.Interest
	row.DebtService = payment.Payment
	row.DebtBalance = debt.Remaining

	// 6. Below EBITDA
	row.Depreciation = row.Revenue * a.DepreciationPct
	ebit := row.EBITDA - row.Depreciation
	row.EBT = ebit - row.InterestExpense
	row.Tax = math.Max(0, row.EBT*a.TaxRate)
	row.NetIncome = row.EBT - row.Tax

	// 7. Working capital: only the change is a cash flow
	row.WorkingCapital = row.Revenue * a.WorkingCapitalPct
	row.WorkingCapitalChange = row.WorkingCapital - s.WorkingCapital

	// 8-11. Cash
	row.Capex = row.Revenue * a.CapexPct
	row.FreeCashFlow = row.NetIncome + row.Depreciation - row.WorkingCapitalChange - row.Capex
	row.CashAfterDebt = row.FreeCashFlow - row.DebtService
	row.CFADS = row.EBITDA - row.Tax - row.WorkingCapitalChange - row.Capex
	if row.DebtService > 0 {
		dscr := row.CFADS / row.DebtService
		row.DSCR = &dscr
	}

	return row, YearState{Debt: debt, WorkingCapital: row.WorkingCapital}
}

// Project folds ProjectYear over the horizon.
func Project(d Drivers, years int) []ProjectedYear {
	rows := make([]ProjectedYear, 0, years)
	state := OpeningState(d)
	for y := 1; y <= years; y++ {
		var row ProjectedYear
		row, state = ProjectYear(d, state, y)
		rows = append(rows, row)
	}
	return rows
}

// Horizon is max(5, exitYear).
func Horizon(a models.Assumptions) int {
	if a.ExitYear > MinHorizonYears {
		return a.ExitYear
	}
	return MinHorizonYears
}

// BuildFiveYearModel runs the full pro-forma, values the exit and solves the
// returns. dsModel is the first-pass summary, if one was rendered; its year-1
// debt service is checked against this run. customExitValue overrides the
// exit chain. The only error is an invalid assumption set.
func (p *Projector) BuildFiveYearModel(fs *models.FinancialStatement, dsModel *models.DebtServiceModel, a models.Assumptions, customExitValue *float64) (models.ProjectionResult, error) {
	if err := assumption.Validate(a); err != nil {
		return models.ProjectionResult{}, fmt.Errorf("five-year model: %w", err)
	}

	d, note := p.Drivers(fs, a)
	var warnings []string
	if note != "" {
		warnings = append(warnings, note)
		p.logger.Warn("[PROJECTION] "+note, zap.String("industry", string(a.IndustryType)))
	}

	rows := Project(d, Horizon(a))
	res := assemble(rows)
	res.AnnualDebtService = d.Loan.AnnualDebtService()
	res.InitialInvestment = a.InitialInvestment()

	warnings = append(warnings, p.verify(rows)...)

	if dsModel != nil && len(rows) > 0 {
		if gap := dsModel.Projections.AnnualDebtService - rows[0].DebtService; math.Abs(gap) > 0.01 {
			msg := fmt.Sprintf("Debt-service summary shows %.2f but the model pays %.2f in year 1; the summary is stale", dsModel.Projections.AnnualDebtService, rows[0].DebtService)
			warnings = append(warnings, msg)
			p.logger.Warn("[PROJECTION] Year-1 debt service mismatch", zap.Float64("gap", gap))
		}
	}

	// Exit
	exitRow := rows[a.ExitYear-1]
	exit := valuation.Exit(valuation.ExitInput{
		Year:         exitRow.Year,
		EBITDA:       exitRow.EBITDA,
		Revenue:      exitRow.Revenue,
		Industry:     p.tables.Lookup(a.IndustryType),
		Fallback:     p.tables.Fallback(),
		CustomValue:  customExitValue,
		UserMultiple: a.ExitMultiple,
	})
	res.ExitValue = exit.Value
	res.ExitMultiple = exit.Multiple
	res.ExitMethodLabel = exit.Label
	if exit.Rule == "discounted_revenue" || exit.Rule == "none" {
		p.logger.Info("[PROJECTION] Exit fell back", zap.String("rule", exit.Rule), zap.Int("exit_year", a.ExitYear))
	}

	// Returns
	flows := append([]float64(nil), res.CashAfterDebt[:a.ExitYear]...)
	flows[len(flows)-1] += exit.Value

	res.IRR = calc.ComputeIRR(flows, res.InitialInvestment)
	if res.IRR == calc.IRRUnavailable && res.InitialInvestment > 0 {
		p.logger.Info("[PROJECTION] IRR not meaningful for this cash-flow series")
	}

	total := 0.0
	for _, f := range flows {
		total += f
	}
	moic, flag := calc.ComputeMOIC(total, res.InitialInvestment)
	res.MOIC = moic
	if flag != calc.FlagNone {
		msg := fmt.Sprintf("MOIC of %.2fx looks wrong (%s); check the assumptions", moic, flag)
		warnings = append(warnings, msg)
		p.logger.Warn("[PROJECTION] "+msg, zap.Float64("moic", moic))
	}

	res.PaybackYears = calc.ComputePayback(res.CashAfterDebt, res.InitialInvestment, len(rows))
	res.Warnings = warnings
	return res, nil
}

// verify checks the cash identities of every year.
func (p *Projector) verify(rows []ProjectedYear) []string {
	var warnings []string
	for _, r := range rows {
		bridge := calc.CashBridge{
			Year:            r.Year,
			FreeCashFlow:    r.FreeCashFlow,
			InterestExpense: r.InterestExpense,
			CFADS:           r.CFADS,
			DebtService:     r.DebtService,
			CashAfterDebt:   r.CashAfterDebt,
		}
		for _, check := range []calc.VerificationResult{calc.CheckCFADSIdentity(bridge), calc.CheckCashAfterDebt(bridge)} {
			if check.IsBalanced {
				continue
			}
			p.logger.Warn("[PROJECTION] Cash identity drift", zap.Int("year", r.Year), zap.Float64("gap", check.Gap))
			warnings = append(warnings, check.Warnings...)
		}
	}
	return warnings
}

// assemble lays the rows out as parallel series.
func assemble(rows []ProjectedYear) models.ProjectionResult {
	n := len(rows)
	res := models.ProjectionResult{
		Years:                make([]int, n),
		Revenue:              make([]float64, n),
		GrossProfit:          make([]float64, n),
		Opex:                 make([]float64, n),
		EBITDA:               make([]float64, n),
		Depreciation:         make([]float64, n),
		InterestExpense:      make([]float64, n),
		Tax:                  make([]float64, n),
		NetIncome:            make([]float64, n),
		WorkingCapitalChange: make([]float64, n),
		Capex:                make([]float64, n),
		FreeCashFlow:         make([]float64, n),
		CFADS:                make([]float64, n),
		DebtService:          make([]float64, n),
		CashAfterDebt:        make([]float64, n),
		DSCR:                 make([]*float64, n),
		DebtBalance:          make([]float64, n),
	}
	for i, r := range rows {
		res.Years[i] = r.Year
		res.Revenue[i] = r.Revenue
		res.GrossProfit[i] = r.GrossProfit
		res.Opex[i] = r.Opex
		res.EBITDA[i] = r.EBITDA
		res.Depreciation[i] = r.Depreciation
		res.InterestExpense[i] = r.InterestExpense
		res.Tax[i] = r.Tax
		res.NetIncome[i] = r.NetIncome
		res.WorkingCapitalChange[i] = r.WorkingCapitalChange
		res.Capex[i] = r.Capex
		res.FreeCashFlow[i] = r.FreeCashFlow
		res.CFADS[i] = r.CFADS
		res.DebtService[i] = r.DebtService
		res.CashAfterDebt[i] = r.CashAfterDebt
		res.DSCR[i] = r.DSCR
		res.DebtBalance[i] = r.DebtBalance
	}
	return res
}
