package models

// IndustryType is the closed set of industry profiles the classifier emits.
type IndustryType string

const (
	IndustryInsuranceAgency      IndustryType = "insurance_agency"
	IndustrySaaS                 IndustryType = "saas"
	IndustryConstruction         IndustryType = "construction"
	IndustryManufacturing        IndustryType = "manufacturing"
	IndustryRetail               IndustryType = "retail"
	IndustryRestaurant           IndustryType = "restaurant"
	IndustryProfessionalServices IndustryType = "professional_services"
	IndustryHealthcare           IndustryType = "healthcare"
	IndustryDistribution         IndustryType = "distribution"
	IndustryGeneralBusiness      IndustryType = "general_business"
)

// ValuationMetric is the earnings or revenue line a multiple is applied to.
type ValuationMetric string

const (
	MetricSDE              ValuationMetric = "sde"
	MetricEBITDA           ValuationMetric = "ebitda"
	MetricCommissionIncome ValuationMetric = "commission_income"
	MetricRevenue          ValuationMetric = "revenue"
)

// MultipleRange bounds the multiple applied to the primary metric.
type MultipleRange struct {
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Default float64 `json:"default" yaml:"default"`
}

// ValuationModel describes how an industry is normally priced.
type ValuationModel struct {
	PrimaryMetric  ValuationMetric `json:"primary_metric" yaml:"primary_metric"`
	MultipleRange  MultipleRange   `json:"multiple_range" yaml:"multiple_range"`
	FinancialFocus string          `json:"financial_focus" yaml:"financial_focus"`
}

// FinancingProfile is the typical acquisition capital stack for an industry.
type FinancingProfile struct {
	DownPaymentPct     float64 `json:"down_payment_pct" yaml:"down_payment_pct"`
	DebtPct            float64 `json:"debt_pct" yaml:"debt_pct"`
	InterestRate       float64 `json:"interest_rate" yaml:"interest_rate"`
	LoanTermYears      int     `json:"loan_term_years" yaml:"loan_term_years"`
	SellerFinancingPct float64 `json:"seller_financing_pct" yaml:"seller_financing_pct"`
}

// BusinessProfile is produced once per uploaded document and never mutated.
type BusinessProfile struct {
	IndustryType     IndustryType     `json:"industry_type"`
	ConfidenceScore  int              `json:"confidence_score"`
	ValuationModel   ValuationModel   `json:"valuation_model"`
	FinancingProfile FinancingProfile `json:"financing_profile"`
	MatchedKeywords  []string         `json:"matched_keywords,omitempty"`
}

// PriceSource records where the purchase price came from.
type PriceSource string

const (
	PriceExtracted  PriceSource = "extracted"
	PriceEstimated  PriceSource = "estimated"
	PriceUserEdited PriceSource = "user_edited"
)

// Assumptions is the flat record of projection inputs. Every edit produces a
// new value that is re-projected in full.
type Assumptions struct {
	IndustryType IndustryType `json:"industry_type" validate:"required"`

	PurchasePrice float64     `json:"purchase_price" validate:"gte=0"`
	PriceSource   PriceSource `json:"price_source" validate:"oneof=extracted estimated user_edited"`
	PriceMethod   string      `json:"price_method"`

	DownPaymentPct     float64 `json:"down_payment_pct" validate:"gte=0,lte=1"`
	SellerFinancingPct float64 `json:"seller_financing_pct" validate:"gte=0,lte=1"`
	InterestRate       float64 `json:"interest_rate" validate:"gte=0,lte=1"`
	LoanTermYears      int     `json:"loan_term_years" validate:"gte=1,lte=30"`

	RevenueGrowthRate float64 `json:"revenue_growth_rate" validate:"gt=-1,lte=5"`
	GrossMarginPct    float64 `json:"gross_margin_pct" validate:"gte=0,lte=1"`
	OpexPct           float64 `json:"opex_pct" validate:"gte=0,lte=1"`
	WorkingCapitalPct float64 `json:"working_capital_pct" validate:"gte=0,lte=1"`
	CapexPct          float64 `json:"capex_pct" validate:"gte=0,lte=1"`
	TaxRate           float64 `json:"tax_rate" validate:"gte=0,lte=1"`
	DepreciationPct   float64 `json:"depreciation_pct" validate:"gte=0,lte=1"`
	CurrentOwnerComp  float64 `json:"current_owner_comp" validate:"gte=0"`

	ExitYear     int      `json:"exit_year" validate:"gte=3,lte=7"`
	ExitMultiple *float64 `json:"exit_multiple,omitempty" validate:"omitempty,gt=0"`
}

// SeniorPrincipal is the bank loan after equity and the seller note.
func (a Assumptions) SeniorPrincipal() float64 {
	p := a.PurchasePrice * (1 - a.DownPaymentPct - a.SellerFinancingPct)
	if p < 0 {
		return 0
	}
	return p
}

// InitialInvestment is the buyer's equity check.
func (a Assumptions) InitialInvestment() float64 {
	return a.PurchasePrice * a.DownPaymentPct
}

// DebtServiceProjections is the simplified summary pass.
type DebtServiceProjections struct {
	AnnualDebtService float64    `json:"annual_debt_service"`
	Revenue           []float64  `json:"revenue"`
	EBITDA            []float64  `json:"ebitda"`
	CFADS             []float64  `json:"cfads"`
	DSCR              []*float64 `json:"dscr"` // nil = N/A
}

// DebtServiceModel is the first-pass model rendered before the interactive
// projector is opened.
type DebtServiceModel struct {
	Assumptions Assumptions            `json:"assumptions"`
	MarginRate  float64                `json:"margin_rate"`
	Projections DebtServiceProjections `json:"projections"`
}

// ProjectionResult is the authoritative five-year model. Index 0 is year 1.
// It is rebuilt in full on every assumption change.
type ProjectionResult struct {
	Years                []int      `json:"years"`
	Revenue              []float64  `json:"revenue"`
	GrossProfit          []float64  `json:"gross_profit"`
	Opex                 []float64  `json:"opex"`
	EBITDA               []float64  `json:"ebitda"`
	Depreciation         []float64  `json:"depreciation"`
	InterestExpense      []float64  `json:"interest_expense"`
	Tax                  []float64  `json:"tax"`
	NetIncome            []float64  `json:"net_income"`
	WorkingCapitalChange []float64  `json:"working_capital_change"`
	Capex                []float64  `json:"capex"`
	FreeCashFlow         []float64  `json:"free_cash_flow"`
	CFADS                []float64  `json:"cfads"`
	DebtService          []float64  `json:"debt_service"`
	CashAfterDebt        []float64  `json:"cash_after_debt"`
	DSCR                 []*float64 `json:"dscr"` // nil = N/A
	DebtBalance          []float64  `json:"debt_balance"`

	AnnualDebtService float64 `json:"annual_debt_service"`
	InitialInvestment float64 `json:"initial_investment"`

	IRR             float64 `json:"irr"` // -1 = N/A
	MOIC            float64 `json:"moic"`
	PaybackYears    float64 `json:"payback_years"`
	ExitValue       float64 `json:"exit_value"`
	ExitMultiple    float64 `json:"exit_multiple"`
	ExitMethodLabel string  `json:"exit_method_label"`

	Warnings []string `json:"warnings,omitempty"`
}

// DSCRStatus grades a coverage ratio against lender thresholds.
type DSCRStatus string

const (
	DSCRExcellent  DSCRStatus = "excellent"
	DSCRAcceptable DSCRStatus = "acceptable"
	DSCRWarning    DSCRStatus = "warning"
	DSCRCritical   DSCRStatus = "critical"
)

// DSCRYear is one graded year. Value is nil when there is no debt service.
type DSCRYear struct {
	Year              int        `json:"year"`
	Value             *float64   `json:"value"`
	Status            DSCRStatus `json:"status"`
	ThresholdBreached bool       `json:"threshold_breached"`
}

// DSCRAssessment is derived from ProjectionResult.DSCR and read-only.
type DSCRAssessment struct {
	Years         []DSCRYear `json:"years"`
	OverallStatus DSCRStatus `json:"overall_status"`
	MinDSCR       *float64   `json:"min_dscr"`
	AvgDSCR       *float64   `json:"avg_dscr"`
}
