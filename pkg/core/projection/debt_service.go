package projection

import (
	"fmt"
	"math"

	"deal_engine/pkg/core/assumption"
	"deal_engine/pkg/core/calc"
	"deal_engine/pkg/models"

	"go.uber.org/zap"
)

// BuildDebtServiceModel is the first-pass summary shown before the full
// model is opened. It projects on one flat EBITDA margin:
//
// FORMULA: revenue_y = TTM × (1+g)^y, EBITDA_y = revenue_y × margin,
// CFADS_y = EBITDA_y - 2% × revenue_y, DSCR_y = CFADS_y / debt service_y
//
// Debt service comes from the same amortization engine as the full model, so
// the two never disagree on year 1.
func (p *Projector) BuildDebtServiceModel(fs *models.FinancialStatement, a models.Assumptions) (models.DebtServiceModel, error) {
	if err := assumption.Validate(a); err != nil {
		return models.DebtServiceModel{}, fmt.Errorf("debt-service model: %w", err)
	}

	def := p.tables.Lookup(a.IndustryType)
	fb := p.tables.Fallback()
	base, note := BaseRevenue(fs, def, fb)
	if note != "" {
		p.logger.Warn("[DEBT-SERVICE] "+note, zap.String("industry", string(a.IndustryType)))
	}
	margin := MarginRate(fs, def, fb)

	loan := SeniorLoan(a)
	schedule := calc.Schedule(loan, MinHorizonYears)

	proj := models.DebtServiceProjections{
		AnnualDebtService: loan.AnnualDebtService(),
		Revenue:           make([]float64, MinHorizonYears),
		EBITDA:            make([]float64, MinHorizonYears),
		CFADS:             make([]float64, MinHorizonYears),
		DSCR:              make([]*float64, MinHorizonYears),
	}
	for i, payment := range schedule {
		revenue := base * math.Pow(1+a.RevenueGrowthRate, float64(i+1))
		ebitda := revenue * margin
		cfads := ebitda - summaryCapexShare*revenue

		proj.Revenue[i] = revenue
		proj.EBITDA[i] = ebitda
		proj.CFADS[i] = cfads
		if payment.Payment > 0 {
			dscr := cfads / payment.Payment
			proj.DSCR[i] = &dscr
		}
	}

	p.logger.Debug("[DEBT-SERVICE] Summary built",
		zap.Float64("annual_debt_service", proj.AnnualDebtService),
		zap.Float64("margin", margin),
		zap.Float64("base_revenue", base))

	return models.DebtServiceModel{
		Assumptions: a,
		MarginRate:  margin,
		Projections: proj,
	}, nil
}
