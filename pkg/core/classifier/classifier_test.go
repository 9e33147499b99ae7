package classifier

import (
	"testing"

	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	return New(knowledge.MustDefault(), nil)
}

func TestClassify_InsuranceAgency(t *testing.T) {
	c := newClassifier(t)
	text := "Family-owned agency with a 92% retention rate across six carrier partners. Commission income grew 8%."

	p := c.Classify(text, "deal.pdf", nil)
	assert.Equal(t, models.IndustryInsuranceAgency, p.IndustryType)
	// commission, carrier, retention rate, "commission income"
	assert.Equal(t, 40, p.ConfidenceScore)
	assert.Equal(t, models.MetricCommissionIncome, p.ValuationModel.PrimaryMetric)
	assert.Equal(t, 0.10, p.FinancingProfile.DownPaymentPct)
}

func TestClassify_FilenamePrefixBonus(t *testing.T) {
	c := newClassifier(t)

	p := c.Classify("", "SaaS_metrics_2023.xlsx", nil)
	assert.Equal(t, models.IndustrySaaS, p.IndustryType)
	// keyword "saas" in the filename plus the prefix bonus
	assert.Equal(t, 30, p.ConfidenceScore)
	assert.Contains(t, p.MatchedKeywords, "filename:saas")
}

func TestClassify_TieGoesToFirstDeclared(t *testing.T) {
	c := newClassifier(t)

	// One insurance keyword and one SaaS keyword: 10 points each.
	p := c.Classify("subscription and commission", "notes.txt", nil)
	assert.Equal(t, models.IndustryInsuranceAgency, p.IndustryType)
	assert.Equal(t, 10, p.ConfidenceScore)

	// Same text with SaaS declared first in the table flips the winner.
	tables, err := knowledge.Parse([]byte(`
fallback: {earnings_multiple: 3, revenue_multiple: 1, revenue_discount: 0.3}
industries:
  - type: saas
    keywords: [subscription]
    valuation: {primary_metric: revenue, multiple_range: {default: 4}}
    exit: {metric: arr_proxy, multiple: 3}
  - type: insurance_agency
    keywords: [commission]
    valuation: {primary_metric: commission_income, multiple_range: {default: 2}}
    exit: {metric: commission_income_proxy, multiple: 2}
  - type: general_business
    valuation: {primary_metric: ebitda, multiple_range: {default: 3}}
    exit: {metric: ebitda, multiple: 3}
`))
	require.NoError(t, err)
	swapped := New(tables, nil)
	assert.Equal(t, models.IndustrySaaS, swapped.Classify("subscription and commission", "notes.txt", nil).IndustryType)
}

func TestClassify_NoSignalIsGeneralBusiness(t *testing.T) {
	c := newClassifier(t)

	p := c.Classify("Quarterly summary of operations.", "financials.pdf", nil)
	assert.Equal(t, models.IndustryGeneralBusiness, p.IndustryType)
	assert.Equal(t, 0, p.ConfidenceScore)
	assert.Equal(t, 3.0, p.ValuationModel.MultipleRange.Default)
	assert.Nil(t, p.MatchedKeywords)
}

func TestClassify_KeywordsMatchWholeWords(t *testing.T) {
	c := newClassifier(t)

	scores := c.Scores("carrier", "", nil)
	for _, s := range scores {
		if s.Industry == models.IndustrySaaS {
			assert.Zero(t, s.Points, "arr must not match inside carrier")
		}
		if s.Industry == models.IndustryInsuranceAgency {
			assert.Equal(t, 10, s.Points)
		}
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := newClassifier(t)
	p := c.Classify("GENERAL CONTRACTOR with a strong BACKLOG", "x.pdf", nil)
	assert.Equal(t, models.IndustryConstruction, p.IndustryType)
	// contractor, backlog, general contractor
	assert.Equal(t, 30, p.ConfidenceScore)
}

func TestClassify_SignatureLineItem(t *testing.T) {
	c := newClassifier(t)
	fs := models.NewFinancialStatement("2023")
	fs.Set(models.LineCommissionIncome, "2023", 850_000)

	p := c.Classify("", "upload.pdf", fs)
	assert.Equal(t, models.IndustryInsuranceAgency, p.IndustryType)
	assert.Equal(t, 10, p.ConfidenceScore)
}

func TestClassify_SignatureLineCanTieKeyword(t *testing.T) {
	c := newClassifier(t)
	fs := models.NewFinancialStatement("2023")
	fs.Set(models.LineCommissionIncome, "2023", 850_000)

	// saas keyword and the insurance signature line both score 10; the
	// tie goes to insurance, declared first.
	p := c.Classify("saas", "upload.pdf", fs)
	assert.Equal(t, models.IndustryInsuranceAgency, p.IndustryType)
	assert.Equal(t, 10, p.ConfidenceScore)
}

func TestClassify_Deterministic(t *testing.T) {
	c := newClassifier(t)
	fs := models.NewFinancialStatement("2022", "TTM")
	fs.Set(models.LineRevenue, "TTM", 2_000_000)

	text := "Regional distributor with a warehouse and a fleet of trucks; wholesale customers."
	first := c.Classify(text, "distribution_cim.pdf", fs)
	second := c.Classify(text, "distribution_cim.pdf", fs)
	assert.Equal(t, first, second)
	assert.Equal(t, models.IndustryDistribution, first.IndustryType)
}

func TestLeadingToken(t *testing.T) {
	tests := map[string]string{
		"insurance_agency_cim.pdf":      "insurance",
		"/uploads/Restaurant-P&L.xlsx":  "restaurant",
		`C:\deals\saas metrics.csv`:     "saas",
		"":                              "",
		"___":                           "",
		"2023 construction backlog.pdf": "2023",
	}
	for in, want := range tests {
		assert.Equal(t, want, leadingToken(in), in)
	}
}

func TestProfile_Override(t *testing.T) {
	c := newClassifier(t)
	p := c.Profile(models.IndustryHealthcare)
	assert.Equal(t, models.IndustryHealthcare, p.IndustryType)
	assert.Equal(t, 0, p.ConfidenceScore)
	assert.Equal(t, 4.5, p.ValuationModel.MultipleRange.Default)
}
