// Package calc provides deterministic financial calculations for the deal model.
// This file implements the investor return metrics: IRR, MOIC and payback.
package calc

import (
	"math"
)

// =============================================================================
// IRR SOLVER PARAMETERS
// =============================================================================

const (
	// IRRUnavailable is returned when the series has no meaningful positive
	// return. Callers render it as "N/A".
	IRRUnavailable = -1.0

	irrSeed          = 0.10
	irrMaxIterations = 50
	irrMinRate       = -0.99
	irrMaxRate       = 10.0
	irrTolerance     = 0.01
	irrMinDerivative = 1e-4

	// MOICImplausible flags multiples that almost always mean a bad input.
	MOICImplausible = 20.0
)

// Flag marks a numerically degenerate result. It is informational only.
type Flag string

const (
	FlagNone            Flag = ""
	FlagNegativeMOIC    Flag = "negative_moic"
	FlagImplausibleMOIC Flag = "implausible_moic"
)

// =============================================================================
// IRR
// =============================================================================

// ComputeIRR solves for the internal rate of return of an investment.
//
// FORMULA: 0 = -I + Σ CF_j / (1 + r)^j, j = 1..N
//
// cashFlows are the post-investment flows for years 1..N (an exit value, if
// any, is already folded into the last element). initialInvestment is the
// absolute value of the year-0 outflow.
//
// Newton-Raphson from r = 10%, at most 50 iterations, each iterate clamped to
// [-0.99, 10]. Stops when |NPV| < 0.01 or when the derivative stalls.
// Returns IRRUnavailable when the investment or the sum of flows is not
// positive, or when the result is non-finite or out of range.
func ComputeIRR(cashFlows []float64, initialInvestment float64) float64 {
	if initialInvestment <= 0 || sum(cashFlows) <= 0 {
		return IRRUnavailable
	}

	rate := irrSeed
	for i := 0; i < irrMaxIterations; i++ {
		npv, slope := npvWithSlope(cashFlows, initialInvestment, rate)
		if math.IsNaN(npv) || math.IsInf(npv, 0) {
			return IRRUnavailable
		}
		if math.Abs(npv) < irrTolerance {
			break
		}
		if math.Abs(slope) < irrMinDerivative {
			break
		}
		rate = clampRate(rate - npv/slope)
	}

	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < irrMinRate || rate > irrMaxRate {
		return IRRUnavailable
	}
	return rate
}

// NPV discounts the flows at rate, including the year-0 outflow.
func NPV(cashFlows []float64, initialInvestment, rate float64) float64 {
	npv, _ := npvWithSlope(cashFlows, initialInvestment, rate)
	return npv
}

func npvWithSlope(cashFlows []float64, initialInvestment, rate float64) (float64, float64) {
	npv := -initialInvestment
	slope := 0.0
	base := 1 + rate
	for j, cf := range cashFlows {
		t := float64(j + 1)
		npv += cf / math.Pow(base, t)
		slope -= t * cf / math.Pow(base, t+1)
	}
	return npv, slope
}

func clampRate(r float64) float64 {
	if math.IsNaN(r) {
		return r
	}
	return math.Max(irrMinRate, math.Min(irrMaxRate, r))
}

// =============================================================================
// MOIC & PAYBACK
// =============================================================================

// ComputeMOIC calculates multiple on invested capital.
//
// FORMULA: MOIC = Total Cash Returned / Initial Investment
//
// Returns 0 when there is no investment. Negative or >20x results are
// returned as-is with a flag; they point at upstream assumptions.
func ComputeMOIC(totalCashReturned, initialInvestment float64) (float64, Flag) {
	if initialInvestment <= 0 {
		return 0, FlagNone
	}
	moic := totalCashReturned / initialInvestment
	switch {
	case moic < 0:
		return moic, FlagNegativeMOIC
	case moic > MOICImplausible:
		return moic, FlagImplausibleMOIC
	}
	return moic, FlagNone
}

// ComputePayback returns the first fractional year at which cumulative cash
// flow covers the initial investment, or horizonYears if it never does.
func ComputePayback(cashFlows []float64, initialInvestment float64, horizonYears int) float64 {
	if initialInvestment <= 0 {
		return 0
	}

	cumulative := 0.0
	for i, cf := range cashFlows {
		if i >= horizonYears {
			break
		}
		prev := cumulative
		cumulative += cf
		if cumulative >= initialInvestment && cf > 0 {
			return float64(i) + (initialInvestment-prev)/cf
		}
	}
	return float64(horizonYears)
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
