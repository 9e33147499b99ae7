package calc

import (
	"math"
)

// =============================================================================
// AMORTIZATION ENGINE
// Level monthly payments; annual figures are the sum of twelve instalments.
// =============================================================================

// Loan is a fully amortizing acquisition loan.
type Loan struct {
	Principal  float64
	AnnualRate float64
	TermYears  int
}

// Balance is the carried state between projection years. It is threaded
// through Step by value so each year can be tested on its own.
type Balance struct {
	Remaining  float64
	MonthsPaid int
}

// YearPayment is one row of an annual amortization schedule.
type YearPayment struct {
	Year           int     `json:"year"`
	OpeningBalance float64 `json:"opening_balance"`
	Interest       float64 `json:"interest"`
	Principal      float64 `json:"principal"`
	Payment        float64 `json:"payment"`
	ClosingBalance float64 `json:"closing_balance"`
}

// MonthlyPayment returns the level annuity payment.
//
// FORMULA: PMT = P × i / (1 - (1 + i)^-n), i = r/12, n = 12 × T
//
// A zero rate degrades to straight-line P / n. No principal means no payment.
func MonthlyPayment(principal, annualRate float64, termYears int) float64 {
	if principal <= 0 || termYears <= 0 {
		return 0
	}
	n := float64(termYears * 12)
	if annualRate == 0 {
		return principal / n
	}
	i := annualRate / 12
	return principal * i / (1 - math.Pow(1+i, -n))
}

// MonthlyPayment of the loan.
func (l Loan) MonthlyPayment() float64 {
	return MonthlyPayment(l.Principal, l.AnnualRate, l.TermYears)
}

// AnnualDebtService is twelve level payments. Zero when there is no loan.
func (l Loan) AnnualDebtService() float64 {
	return 12 * l.MonthlyPayment()
}

// Start returns the opening accumulator for the loan.
func (l Loan) Start() Balance {
	return Balance{Remaining: math.Max(0, l.Principal)}
}

// Step advances the loan by one year and returns that year's split together
// with the new balance. Interest accrues monthly on the running balance; the
// final instalment of the term retires whatever principal is left, so the
// balance never goes below zero and principal repaid sums to the original
// loan.
func (l Loan) Step(b Balance, year int) (YearPayment, Balance) {
	row := YearPayment{Year: year, OpeningBalance: b.Remaining}
	payment := l.MonthlyPayment()
	monthlyRate := l.AnnualRate / 12
	totalMonths := l.TermYears * 12

	for m := 0; m < 12 && b.Remaining > 0 && b.MonthsPaid < totalMonths; m++ {
		interest := b.Remaining * monthlyRate
		principal := payment - interest
		if principal > b.Remaining || b.MonthsPaid == totalMonths-1 {
			principal = b.Remaining
		}
		b.Remaining = math.Max(0, b.Remaining-principal)
		b.MonthsPaid++

		row.Interest += interest
		row.Principal += principal
	}

	row.Payment = row.Interest + row.Principal
	row.ClosingBalance = b.Remaining
	return row, b
}

// Schedule folds Step over the given number of years.
func Schedule(l Loan, years int) []YearPayment {
	rows := make([]YearPayment, 0, years)
	b := l.Start()
	for y := 1; y <= years; y++ {
		var row YearPayment
		row, b = l.Step(b, y)
		rows = append(rows, row)
	}
	return rows
}
