package main

import (
	"fmt"
	"io"
	"strings"

	"deal_engine/pkg/core/assumption"
	"deal_engine/pkg/core/calc"
	"deal_engine/pkg/core/pipeline"
)

// printReport writes the analyst report for one modelled deal.
func printReport(w io.Writer, name string, res pipeline.Result) {
	a := res.Assumptions
	p := res.Projection
	money := assumption.FormatDollars

	fmt.Fprintln(w, "\n################################################################################")
	fmt.Fprintln(w, "                        DEAL ENGINE - ACQUISITION REPORT")
	fmt.Fprintf(w, "                        Target: %s\n", name)
	fmt.Fprintln(w, "################################################################################")

	// [1] PROFILE
	fmt.Fprintln(w, "\n[1] BUSINESS PROFILE")
	fmt.Fprintf(w, "Industry:            %s (confidence %d)\n", res.Profile.IndustryType, res.Profile.ConfidenceScore)
	fmt.Fprintf(w, "Primary metric:      %s\n", res.Profile.ValuationModel.PrimaryMetric)
	if len(res.Profile.MatchedKeywords) > 0 {
		fmt.Fprintf(w, "Matched:             %s\n", strings.Join(res.Profile.MatchedKeywords, ", "))
	}

	// [2] CAPITAL STACK
	cs := res.CapitalStack
	fmt.Fprintln(w, "\n[2] CAPITAL STACK")
	fmt.Fprintf(w, "Purchase price:      %14s  (%s)\n", money(cs.PurchasePrice), a.PriceMethod)
	fmt.Fprintf(w, "Equity:              %14s  (%.0f%%)\n", money(cs.EquityCheck), a.DownPaymentPct*100)
	fmt.Fprintf(w, "Senior debt:         %14s  (%.2f%% over %d years)\n", money(cs.SeniorDebt), a.InterestRate*100, a.LoanTermYears)
	fmt.Fprintf(w, "Seller note:         %14s\n", money(cs.SellerNote))
	if cs.EntryMultiple > 0 {
		fmt.Fprintf(w, "Entry multiple:      %13.2fx EBITDA\n", cs.EntryMultiple)
	}

	// [3] PROJECTION
	fmt.Fprintln(w, "\n[3] PRO-FORMA PROJECTION")
	fmt.Fprintf(w, "%-6s | %12s | %12s | %12s | %12s | %8s\n", "Year", "Revenue", "EBITDA", "Debt Svc", "Cash After", "DSCR")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for i, year := range p.Years {
		fmt.Fprintf(w, "%-6d | %12.0f | %12.0f | %12.0f | %12.0f | %8s\n",
			year, p.Revenue[i], p.EBITDA[i], p.DebtService[i], p.CashAfterDebt[i], ratio(p.DSCR[i]))
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))

	// [4] COVERAGE
	fmt.Fprintln(w, "\n[4] DEBT SERVICE COVERAGE")
	fmt.Fprintf(w, "Overall:             %s\n", strings.ToUpper(string(res.DSCR.OverallStatus)))
	fmt.Fprintf(w, "Minimum / average:   %s / %s\n", ratio(res.DSCR.MinDSCR), ratio(res.DSCR.AvgDSCR))

	// [5] RETURNS
	fmt.Fprintln(w, "\n[5] RETURNS")
	fmt.Fprintf(w, "Exit value:          %14s  (%s)\n", money(p.ExitValue), p.ExitMethodLabel)
	if p.IRR == calc.IRRUnavailable {
		fmt.Fprintln(w, "IRR:                 N/A")
	} else {
		fmt.Fprintf(w, "IRR:                 %13.1f%%\n", p.IRR*100)
	}
	fmt.Fprintf(w, "MOIC:                %13.2fx\n", p.MOIC)
	fmt.Fprintf(w, "Payback:             %13.1f years\n", p.PaybackYears)

	// [6] HISTORY
	if len(res.History.Lines) > 0 {
		fmt.Fprintln(w, "\n[6] HISTORICAL TRENDS")
		for _, lt := range res.History.Lines {
			cagr := "N/A"
			if lt.CAGR != nil {
				cagr = fmt.Sprintf("%.1f%%", *lt.CAGR)
			}
			fmt.Fprintf(w, "%-20s %s  (CAGR %s)\n", string(lt.Line)+":", strings.Join(lt.Periods, " > "), cagr)
		}
	}

	if flags := res.History.Flags(); len(flags) > 0 {
		res.Warnings = append(res.Warnings, flags...)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintln(w, "\n[!] WARNINGS")
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}

func ratio(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2fx", *v)
}
