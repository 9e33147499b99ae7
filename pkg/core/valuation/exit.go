// Package valuation prices the business at entry and exit from multiples.
package valuation

import (
	"fmt"
	"math"

	"deal_engine/pkg/core/knowledge"
)

// NoExitLabel is recorded when no rule can produce an exit value.
const NoExitLabel = "No exit value available"

// ExitInput holds the exit-year figures and the pricing inputs.
type ExitInput struct {
	Year     int
	EBITDA   float64
	Revenue  float64
	Industry knowledge.IndustryDefinition
	Fallback knowledge.Fallbacks

	CustomValue  *float64 // user override of the exit value
	UserMultiple *float64 // user override of the EBITDA exit multiple
}

// ExitValuation is the tagged result of the exit chain. Multiple is the
// multiple actually applied, or the one implied by a custom value.
type ExitValuation struct {
	Value    float64 `json:"value"`
	Multiple float64 `json:"multiple"`
	Basis    string  `json:"basis"` // "ebitda" or "revenue"
	Label    string  `json:"label"`
	Rule     string  `json:"rule"`
}

// exitRule is one (predicate, computation) pair of the chain.
type exitRule struct {
	name  string
	apply func(in ExitInput) (ExitValuation, bool)
}

// exitRules are evaluated in order; the first rule that applies wins.
var exitRules = []exitRule{
	{"custom", customExit},
	{"user_multiple", userMultipleExit},
	{"industry_pair", industryPairExit},
	{"ebitda_default", defaultMultipleExit},
	{"discounted_revenue", discountedRevenueExit},
}

// Exit walks the exit chain. It never divides by zero and never returns NaN;
// when nothing applies the value is 0 with NoExitLabel.
func Exit(in ExitInput) ExitValuation {
	for _, r := range exitRules {
		if v, ok := r.apply(in); ok {
			v.Rule = r.name
			return v
		}
	}
	return ExitValuation{Label: NoExitLabel, Rule: "none"}
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func customExit(in ExitInput) (ExitValuation, bool) {
	if in.CustomValue == nil {
		return ExitValuation{}, false
	}
	v := *in.CustomValue
	if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return ExitValuation{}, false
	}

	out := ExitValuation{Value: v}
	switch {
	case usable(in.EBITDA):
		out.Multiple = v / in.EBITDA
		out.Basis = "ebitda"
	case usable(in.Revenue):
		out.Multiple = v / in.Revenue
		out.Basis = "revenue"
	}
	if out.Basis != "" {
		out.Label = fmt.Sprintf("Custom exit value (implied %.2fx year-%d %s)", out.Multiple, in.Year, out.Basis)
	} else {
		out.Label = "Custom exit value"
	}
	return out, true
}

func userMultipleExit(in ExitInput) (ExitValuation, bool) {
	if in.UserMultiple == nil || !usable(*in.UserMultiple) || !usable(in.EBITDA) {
		return ExitValuation{}, false
	}
	m := *in.UserMultiple
	return ExitValuation{
		Value:    in.EBITDA * m,
		Multiple: m,
		Basis:    "ebitda",
		Label:    fmt.Sprintf("%.2fx year-%d EBITDA (user multiple)", m, in.Year),
	}, true
}

func industryPairExit(in ExitInput) (ExitValuation, bool) {
	pair := in.Industry.Exit
	base, basis := in.EBITDA, "ebitda"
	if pair.Metric.UsesRevenue() {
		base, basis = in.Revenue, "revenue"
	}
	if !usable(base) || !usable(pair.Multiple) {
		return ExitValuation{}, false
	}
	return ExitValuation{
		Value:    base * pair.Multiple,
		Multiple: pair.Multiple,
		Basis:    basis,
		Label:    fmt.Sprintf("%.2fx year-%d %s (%s exit)", pair.Multiple, in.Year, pair.Metric, in.Industry.Type),
	}, true
}

func defaultMultipleExit(in ExitInput) (ExitValuation, bool) {
	m := in.Industry.Valuation.MultipleRange.Default
	if !usable(in.EBITDA) || !usable(m) {
		return ExitValuation{}, false
	}
	return ExitValuation{
		Value:    in.EBITDA * m,
		Multiple: m,
		Basis:    "ebitda",
		Label:    fmt.Sprintf("%.2fx year-%d EBITDA (default multiple)", m, in.Year),
	}, true
}

func discountedRevenueExit(in ExitInput) (ExitValuation, bool) {
	m := in.Fallback.RevenueMultiple * (1 - in.Fallback.RevenueDiscount)
	if !usable(in.Revenue) || !usable(m) {
		return ExitValuation{}, false
	}
	return ExitValuation{
		Value:    in.Revenue * m,
		Multiple: m,
		Basis:    "revenue",
		Label: fmt.Sprintf("%.2fx year-%d revenue (%.0f%% discounted revenue fallback)",
			m, in.Year, in.Fallback.RevenueDiscount*100),
	}, true
}
