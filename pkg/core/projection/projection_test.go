package projection

import (
	"math"
	"testing"

	"deal_engine/pkg/core/assumption"
	"deal_engine/pkg/core/calc"
	"deal_engine/pkg/core/classifier"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func ttmStatement() *models.FinancialStatement {
	fs := models.NewFinancialStatement("2022", "2023", "TTM")
	fs.Set(models.LineRevenue, "2022", 1_800_000)
	fs.Set(models.LineRevenue, "TTM", 2_000_000)
	fs.Set(models.LineEBITDA, "TTM", 400_000)
	return fs
}

// baseCase matches what the generator produces for ttmStatement.
func baseCase() models.Assumptions {
	return models.Assumptions{
		IndustryType:      models.IndustryGeneralBusiness,
		PurchasePrice:     1_200_000,
		PriceSource:       models.PriceEstimated,
		DownPaymentPct:    0.10,
		InterestRate:      0.11,
		LoanTermYears:     10,
		RevenueGrowthRate: 0.03,
		GrossMarginPct:    0.40,
		OpexPct:           0.20,
		WorkingCapitalPct: 0.10,
		CapexPct:          0.02,
		TaxRate:           0.25,
		DepreciationPct:   0.02,
		ExitYear:          5,
	}
}

func newProjector(t *testing.T) *Projector {
	t.Helper()
	return NewProjector(knowledge.MustDefault(), nil)
}

func TestBuildFiveYearModel_EndToEnd(t *testing.T) {
	tables := knowledge.MustDefault()
	fs := ttmStatement()
	profile := classifier.New(tables, nil).Profile(models.IndustryGeneralBusiness)
	a, err := assumption.NewGenerator(tables, nil).Generate(fs, profile, nil)
	require.NoError(t, err)
	require.Equal(t, 1_200_000.0, a.PurchasePrice)

	p := NewProjector(tables, nil)
	ds, err := p.BuildDebtServiceModel(fs, a)
	require.NoError(t, err)

	res, err := p.BuildFiveYearModel(fs, &ds, a, nil)
	require.NoError(t, err)

	// Standard annuity on $1,080,000 at 11% over 10 years.
	assert.InDelta(t, 178_524.01, res.AnnualDebtService, 0.01)
	assert.InDelta(t, ds.Projections.AnnualDebtService, res.DebtService[0], 1e-6)
	assert.InDelta(t, 120_000, res.InitialInvestment, 1e-6)

	require.Len(t, res.Years, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, res.Years)
	assert.InDelta(t, 2_060_000, res.Revenue[0], 1e-6)
	assert.InDelta(t, 412_000, res.EBITDA[0], 1e-6)
	assert.InDelta(t, 115_694.98, res.InterestExpense[0], 0.01)
	assert.InDelta(t, 6_000, res.WorkingCapitalChange[0], 1e-6)

	require.NotNil(t, res.DSCR[0])
	assert.False(t, math.IsInf(*res.DSCR[0], 0))
	assert.InDelta(t, 301_023.75/178_524.01, *res.DSCR[0], 1e-4)

	assert.InDelta(t, 3.0*463_709.63, res.ExitValue, 0.1)
	assert.Equal(t, 3.0, res.ExitMultiple)
	assert.Contains(t, res.ExitMethodLabel, "general_business")

	assert.InDelta(t, 0.7210, res.IRR, 1e-3)
	assert.InDelta(t, 13.087, res.MOIC, 1e-3)
	assert.InDelta(t, 4.112, res.PaybackYears, 1e-3)
	assert.Empty(t, res.Warnings)
}

func TestBuildFiveYearModel_CashIdentities(t *testing.T) {
	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, baseCase(), nil)
	require.NoError(t, err)

	for i := range res.Years {
		assert.InDelta(t, res.FreeCashFlow[i]+res.InterestExpense[i], res.CFADS[i], 0.01, "year %d", i+1)
		assert.InDelta(t, res.FreeCashFlow[i]-res.DebtService[i], res.CashAfterDebt[i], 1e-9, "year %d", i+1)
		assert.GreaterOrEqual(t, res.DebtBalance[i], 0.0)
	}
}

// DSCR is graded on pre-interest CFADS; interest is already inside debt service.
func TestBuildFiveYearModel_DSCRNumeratorExcludesInterest(t *testing.T) {
	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, baseCase(), nil)
	require.NoError(t, err)

	for i := range res.Years {
		cfads := res.EBITDA[i] - res.Tax[i] - res.WorkingCapitalChange[i] - res.Capex[i]
		assert.InDelta(t, cfads, res.CFADS[i], 1e-6, "year %d", i+1)

		require.NotNil(t, res.DSCR[i])
		assert.InDelta(t, cfads/res.DebtService[i], *res.DSCR[i], 1e-9, "year %d", i+1)

		require.Greater(t, res.InterestExpense[i], 0.0)
		afterInterest := (cfads - res.InterestExpense[i]) / res.DebtService[i]
		assert.Greater(t, *res.DSCR[i]-afterInterest, 0.1, "year %d must not net interest twice", i+1)
	}
}

func TestBuildFiveYearModel_NoWorkingCapital(t *testing.T) {
	a := baseCase()
	a.WorkingCapitalPct = 0

	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)

	for i := range res.Years {
		assert.Zero(t, res.WorkingCapitalChange[i])
		assert.Equal(t, res.NetIncome[i]+res.Depreciation[i]-res.Capex[i], res.FreeCashFlow[i])
	}
}

func TestBuildFiveYearModel_ExitYearExtendsHorizon(t *testing.T) {
	a := baseCase()
	a.ExitYear = 7

	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)
	assert.Len(t, res.Years, 7)
	assert.Len(t, res.DSCR, 7)
	assert.InDelta(t, 3.0*res.EBITDA[6], res.ExitValue, 1e-6)

	a.ExitYear = 3
	res, err = newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)
	assert.Len(t, res.Years, 5)
	assert.InDelta(t, 3.0*res.EBITDA[2], res.ExitValue, 1e-6)
}

func TestBuildFiveYearModel_NoSeniorDebt(t *testing.T) {
	a := baseCase()
	a.DownPaymentPct = 0.5
	a.SellerFinancingPct = 0.5

	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)
	assert.Zero(t, res.AnnualDebtService)
	for i := range res.Years {
		assert.Nil(t, res.DSCR[i], "DSCR is N/A without debt service")
		assert.Zero(t, res.InterestExpense[i])
		assert.Zero(t, res.DebtBalance[i])
	}
}

func TestBuildFiveYearModel_ShortLoanRetires(t *testing.T) {
	a := baseCase()
	a.LoanTermYears = 3

	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0, res.DebtBalance[2], 1e-6)
	assert.Zero(t, res.DebtService[3])
	assert.Zero(t, res.DebtService[4])
	assert.Nil(t, res.DSCR[3])
	assert.NotNil(t, res.DSCR[2])

	principal := 0.0
	for i := range res.Years {
		principal += res.DebtService[i] - res.InterestExpense[i]
	}
	assert.InDelta(t, a.SeniorPrincipal(), principal, 1e-6)
}

func TestBuildFiveYearModel_CustomExitValue(t *testing.T) {
	custom := 2_000_000.0
	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, baseCase(), &custom)
	require.NoError(t, err)
	assert.Equal(t, custom, res.ExitValue)
	assert.InDelta(t, custom/res.EBITDA[4], res.ExitMultiple, 1e-9)
	assert.Contains(t, res.ExitMethodLabel, "Custom")
}

func TestBuildFiveYearModel_RejectsInvalidAssumptions(t *testing.T) {
	a := baseCase()
	a.InterestRate = -0.05

	_, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumptions)

	_, err = newProjector(t).BuildDebtServiceModel(ttmStatement(), a)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumptions)
}

func TestBuildFiveYearModel_ImplausibleMOICIsFlagged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewProjector(knowledge.MustDefault(), zap.New(core))

	a := baseCase()
	a.DownPaymentPct = 0.01

	res, err := p.BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)
	assert.Greater(t, res.MOIC, calc.MOICImplausible)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "implausible_moic")
	assert.Equal(t, 1, logs.FilterMessageSnippet("MOIC").Len())
}

func TestBuildFiveYearModel_StaleSummaryIsFlagged(t *testing.T) {
	p := newProjector(t)
	fs := ttmStatement()
	a := baseCase()

	ds, err := p.BuildDebtServiceModel(fs, a)
	require.NoError(t, err)

	edited := a
	edited.InterestRate = 0.09
	res, err := p.BuildFiveYearModel(fs, &ds, edited, nil)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "stale")
}

func TestBuildFiveYearModel_NoFinancials(t *testing.T) {
	a := baseCase()
	a.PurchasePrice = 0

	res, err := newProjector(t).BuildFiveYearModel(models.NewFinancialStatement(), nil, a, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Revenue[0])
	assert.Equal(t, calc.IRRUnavailable, res.IRR)
	assert.Zero(t, res.MOIC)
	assert.NotEmpty(t, res.Warnings)
	for i := range res.Years {
		assert.False(t, math.IsNaN(res.CashAfterDebt[i]))
		assert.Nil(t, res.DSCR[i])
	}
}

func TestBuildDebtServiceModel(t *testing.T) {
	ds, err := newProjector(t).BuildDebtServiceModel(ttmStatement(), baseCase())
	require.NoError(t, err)

	assert.InDelta(t, 0.20, ds.MarginRate, 1e-12)
	assert.InDelta(t, 178_524.01, ds.Projections.AnnualDebtService, 0.01)
	require.Len(t, ds.Projections.CFADS, 5)
	assert.InDelta(t, 2_060_000, ds.Projections.Revenue[0], 1e-6)
	assert.InDelta(t, 412_000-41_200, ds.Projections.CFADS[0], 1e-6)
	require.NotNil(t, ds.Projections.DSCR[0])
	assert.InDelta(t, 370_800/178_524.01, *ds.Projections.DSCR[0], 1e-4)
	assert.Equal(t, baseCase(), ds.Assumptions)
}

func TestBuildDebtServiceModel_TableMarginWithoutHistory(t *testing.T) {
	fs := models.NewFinancialStatement("TTM")
	fs.Set(models.LineRevenue, "TTM", 1_000_000)

	a := baseCase()
	a.IndustryType = models.IndustryManufacturing
	ds, err := newProjector(t).BuildDebtServiceModel(fs, a)
	require.NoError(t, err)
	assert.Equal(t, 0.12, ds.MarginRate)
}

func TestProjectYear_IsPure(t *testing.T) {
	p := newProjector(t)
	d, note := p.Drivers(ttmStatement(), baseCase())
	require.Empty(t, note)

	s := OpeningState(d)
	first, next1 := ProjectYear(d, s, 1)
	second, next2 := ProjectYear(d, s, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, next1, next2)

	year2, _ := ProjectYear(d, next1, 2)
	assert.Less(t, year2.DebtBalance, first.DebtBalance)
	assert.InDelta(t, year2.WorkingCapital-first.WorkingCapital, year2.WorkingCapitalChange, 1e-9)
}

func TestOwnerCompAdjustment(t *testing.T) {
	assert.Equal(t, 100_000.0, OwnerCompAdjustment(400_000, 2_000_000), "market capped at 300k")
	assert.Equal(t, 50_000.0, OwnerCompAdjustment(200_000, 1_000_000))
	assert.Equal(t, -50_000.0, OwnerCompAdjustment(100_000, 1_000_000), "underpaid owner adds cost")
	assert.Zero(t, OwnerCompAdjustment(0, 2_000_000))
}

func TestOwnerCompLowersOpex(t *testing.T) {
	a := baseCase()
	a.CurrentOwnerComp = 400_000

	res, err := newProjector(t).BuildFiveYearModel(ttmStatement(), nil, a, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2_060_000*0.20-100_000, res.Opex[0], 1e-6)
	assert.InDelta(t, 512_000, res.EBITDA[0], 1e-6)
}

func TestBaseRevenue(t *testing.T) {
	tables := knowledge.MustDefault()
	def := tables.Lookup(models.IndustryGeneralBusiness)

	r, note := BaseRevenue(ttmStatement(), def, tables.Fallback())
	assert.Equal(t, 2_000_000.0, r)
	assert.Empty(t, note)

	fs := models.NewFinancialStatement("TTM")
	fs.Set(models.LineEBITDA, "TTM", 300_000)
	r, note = BaseRevenue(fs, def, tables.Fallback())
	assert.InDelta(t, 2_000_000, r, 1e-6)
	assert.Contains(t, note, "inferred")

	r, note = BaseRevenue(nil, def, tables.Fallback())
	assert.Zero(t, r)
	assert.NotEmpty(t, note)
}
