package calc

import (
	"fmt"
	"math"
)

// identityTolerance absorbs float rounding on dollar amounts.
const identityTolerance = 0.01

// CashBridge is one projected year of the cash identities the projector
// must satisfy.
type CashBridge struct {
	Year            int
	FreeCashFlow    float64
	InterestExpense float64
	CFADS           float64
	DebtService     float64
	CashAfterDebt   float64
}

// VerificationResult holds the status of integrity checks
type VerificationResult struct {
	IsBalanced bool
	Gap        float64
	Warnings   []string
}

// CheckCFADSIdentity verifies CFADS = FCF + Interest
func CheckCFADSIdentity(b CashBridge) VerificationResult {
	gap := b.CFADS - (b.FreeCashFlow + b.InterestExpense)
	return verdict(gap, fmt.Sprintf("Year %d: CFADS differs from FCF + interest by %.2f", b.Year, gap))
}

// CheckCashAfterDebt verifies Cash After Debt = FCF - Debt Service
func CheckCashAfterDebt(b CashBridge) VerificationResult {
	gap := b.CashAfterDebt - (b.FreeCashFlow - b.DebtService)
	return verdict(gap, fmt.Sprintf("Year %d: cash after debt differs from FCF - debt service by %.2f", b.Year, gap))
}

func verdict(gap float64, warning string) VerificationResult {
	isBalanced := math.Abs(gap) < identityTolerance

	var warnings []string
	if !isBalanced {
		warnings = append(warnings, warning)
	}

	return VerificationResult{
		IsBalanced: isBalanced,
		Gap:        gap,
		Warnings:   warnings,
	}
}
