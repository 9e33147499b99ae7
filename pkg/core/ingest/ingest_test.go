package ingest

import (
	"encoding/json"
	"testing"

	"deal_engine/pkg/core/utils"
	"deal_engine/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatement_StrictJSON(t *testing.T) {
	raw := []byte(`{
		"periods": ["2022", "2023", "TTM"],
		"line_items": {
			"revenue": {"2022": 1800000, "2023": "$1,950,000", "TTM": "$2,000,000"},
			"Adjusted EBITDA": {"TTM": 410000},
			"ebitda": {"2022": null, "TTM": "400k"},
			"netIncome": {"TTM": "(25,000)"},
			"widgets": {"TTM": 3}
		}
	}`)

	st, err := DecodeStatement(raw)
	require.NoError(t, err)
	assert.Equal(t, utils.StrategyJSON, st.Strategy)

	fs := st.Statement
	assert.Equal(t, []string{"2022", "2023", "TTM"}, fs.Periods)

	v, ok := fs.Value(models.LineRevenue, "2023")
	require.True(t, ok)
	assert.Equal(t, 1_950_000.0, v)

	v, _, ok = fs.Latest(models.LineEBITDA)
	require.True(t, ok)
	assert.Equal(t, 400_000.0, v)

	_, ok = fs.Value(models.LineEBITDA, "2022")
	assert.False(t, ok, "null stays unknown")

	v, ok = fs.Value(models.LineAdjustedEBITDA, "TTM")
	require.True(t, ok)
	assert.Equal(t, 410_000.0, v)

	_, ok = fs.Value(models.LineNetIncome, "TTM")
	assert.False(t, ok, "negative amounts become unknown")

	assert.Len(t, st.Warnings, 2)
	assert.Contains(t, st.Warnings[0], "netIncome")
	assert.Contains(t, st.Warnings[1], "widgets")
}

func TestDecodeStatement_RepairsBrokenJSON(t *testing.T) {
	raw := []byte(`{'periods': ['TTM'], 'line_items': {'revenue': {'TTM': '$2,000,000'},},}`)

	st, err := DecodeStatement(raw)
	require.NoError(t, err)
	assert.NotEqual(t, utils.StrategyJSON, st.Strategy)

	v, ok := st.Statement.Value(models.LineRevenue, "TTM")
	require.True(t, ok)
	assert.Equal(t, 2_000_000.0, v)
	require.NotEmpty(t, st.Warnings)
	assert.Contains(t, st.Warnings[0], "accepted via")
}

func TestDecodeStatement_CamelCaseAndMissingPeriods(t *testing.T) {
	st, err := DecodeStatement([]byte(`{"lineItems": {"sde": {"TTM": 300000, "2021": 250000}}}`))
	require.NoError(t, err)

	fs := st.Statement
	assert.Empty(t, fs.Periods)
	assert.Equal(t, []string{"2021", "TTM"}, fs.OrderedPeriods())

	v, p, ok := fs.Latest(models.LineSDE)
	require.True(t, ok)
	assert.Equal(t, 300_000.0, v)
	assert.Equal(t, "TTM", p)
}

func TestDecodeStatement_Errors(t *testing.T) {
	_, err := DecodeStatement([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = DecodeStatement([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}

func TestDecodeStatement_ReconcilesSubtotals(t *testing.T) {
	st, err := DecodeStatement([]byte(`{
		"periods": ["TTM"],
		"line_items": {
			"revenue": {"TTM": 1000000},
			"cost_of_revenue": {"TTM": 600000},
			"gross_profit": {"TTM": 500000}
		}
	}`))
	require.NoError(t, err)
	require.Len(t, st.Warnings, 1)
	assert.Contains(t, st.Warnings[0], "Gross Profit")
}

func TestReconcile(t *testing.T) {
	fs := models.NewFinancialStatement("2023", "TTM")
	fs.Set(models.LineRevenue, "2023", 1_000_000)
	fs.Set(models.LineCostOfRevenue, "2023", 600_000)
	fs.Set(models.LineGrossProfit, "2023", 400_000)
	fs.Set(models.LineRevenue, "TTM", 1_000_000)
	fs.Set(models.LineCostOfRevenue, "TTM", 600_000)
	fs.Set(models.LineGrossProfit, "TTM", 390_000)
	fs.Set(models.LineOperatingExpenses, "TTM", 200_000)
	fs.Set(models.LineEBITDA, "TTM", 100_000)

	checks := Reconcile(fs)
	require.Len(t, checks, 3)
	assert.Equal(t, StatusMatch, checks[0].Status)
	assert.Equal(t, StatusImmaterial, checks[1].Status)
	assert.Equal(t, "EBITDA", checks[2].CheckpointName)
	assert.Equal(t, StatusMismatch, checks[2].Status)
	assert.Equal(t, 190_000.0, checks[2].CalculatedValue)
	assert.Empty(t, Reconcile(nil))
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
		err  bool
	}{
		{"$1,234,567", f(1_234_567), false},
		{"(12,000)", f(-12_000), false},
		{"-$500", f(-500), false},
		{"1.2M", f(1_200_000), false},
		{"$2.5mm", f(2_500_000), false},
		{"850k", f(850_000), false},
		{"1,234.56", f(1_235), false},
		{"USD 40,000", f(40_000), false},
		{"n/a", nil, false},
		{"-", nil, false},
		{"", nil, false},
		{"abc", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(json.RawMessage(`null`))
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseAmount(json.RawMessage(`1234.4`))
	require.NoError(t, err)
	assert.Equal(t, 1_234.0, *v)

	v, err = ParseAmount(json.RawMessage(`"$5"`))
	require.NoError(t, err)
	assert.Equal(t, 5.0, *v)

	_, err = ParseAmount(json.RawMessage(`true`))
	assert.Error(t, err)
}

func TestDecodePurchasePrice(t *testing.T) {
	p, err := DecodePurchasePrice([]byte(`{"amount": "$1,250,000", "source_confidence": 0.8, "document_sourced": true, "source": "CIM p.3"}`))
	require.NoError(t, err)
	assert.Equal(t, 1_250_000.0, p.Amount)
	assert.True(t, p.DocumentSourced)
	assert.Equal(t, "CIM p.3", p.Source)

	p, err = DecodePurchasePrice([]byte(`{"amount": null, "document_sourced": true}`))
	require.NoError(t, err)
	assert.Zero(t, p.Amount)

	_, err = DecodePurchasePrice(nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestDecodeDeal(t *testing.T) {
	d, err := DecodeDeal([]byte(`{
		"file_name": "insurance_agency_cim.pdf",
		"document_text": "Commission income from six carriers",
		"statement": {"periods": ["TTM"], "line_items": {"commission_income": {"TTM": 800000}}},
		"extracted_price": {"amount": 1500000, "document_sourced": true}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "insurance_agency_cim.pdf", d.FileName)
	require.NotNil(t, d.ExtractedPrice)
	assert.Equal(t, 1_500_000.0, d.ExtractedPrice.Amount)

	v, ok := d.Statement.Value(models.LineCommissionIncome, "TTM")
	require.True(t, ok)
	assert.Equal(t, 800_000.0, v)
	assert.Empty(t, d.Warnings)

	d, err = DecodeDeal([]byte(`{"file_name": "x.pdf"}`))
	require.NoError(t, err)
	assert.NotNil(t, d.Statement)
	assert.False(t, d.Statement.HasData())
	assert.Nil(t, d.ExtractedPrice)
	assert.Contains(t, d.Warnings, "no statement in payload")
}

func TestLookupKind(t *testing.T) {
	for in, want := range map[string]models.LineItemKind{
		"adjusted_ebitda":    models.LineAdjustedEBITDA,
		"Recast EBITDA":      models.LineRecastEBITDA,
		"commissionIncome":   models.LineCommissionIncome,
		"Sales":              models.LineRevenue,
		"owner-compensation": models.LineOwnerComp,
		"OPERATING_EXPENSES": models.LineOperatingExpenses,
	} {
		got, ok := LookupKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := LookupKind("goodwill")
	assert.False(t, ok)
}

func f(v float64) *float64 { return &v }
