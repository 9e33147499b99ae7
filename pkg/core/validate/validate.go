// Package validate derives historical trend checks from an uploaded
// statement: period-over-period growth, compound growth and suspicious
// swings that usually mean an extraction error.
package validate

import (
	"fmt"
	"math"

	"deal_engine/pkg/models"
)

// DefaultOutlierPct flags a period-over-period swing larger than this.
const DefaultOutlierPct = 50.0

// TrendLines are the statement rows checked by History.
var TrendLines = []models.LineItemKind{
	models.LineRevenue,
	models.LineEBITDA,
	models.LineSDE,
	models.LineNetIncome,
}

// =============================================================================
// GROWTH
// =============================================================================

// CalculateYoY returns the percentage change (current - prior) / |prior| * 100.
// Growth from a zero prior is undefined and reported with ok == false.
func CalculateYoY(current, prior float64) (pct float64, ok bool) {
	if prior == 0 {
		return 0, current == 0
	}
	return (current - prior) / math.Abs(prior) * 100, true
}

// yoyPtr is CalculateYoY as a nullable field value.
func yoyPtr(current, prior float64) *float64 {
	pct, ok := CalculateYoY(current, prior)
	if !ok {
		return nil
	}
	return &pct
}

// CalculateCAGR returns ((end / start) ^ (1/years) - 1) * 100, or 0 when the
// start is not positive or no time has passed.
func CalculateCAGR(startValue, endValue float64, years int) float64 {
	if startValue <= 0 || endValue < 0 || years <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1.0/float64(years)) - 1) * 100
}

// YoYResult is the change of one line between two adjacent known periods.
type YoYResult struct {
	Period       string   `json:"period"`
	PriorPeriod  string   `json:"prior_period"`
	CurrentValue float64  `json:"current_value"`
	PriorValue   float64  `json:"prior_value"`
	ChangeAbs    float64  `json:"change_abs"`
	ChangePct    *float64 `json:"change_pct"` // nil when the prior period is zero
}

// =============================================================================
// OUTLIER DETECTION
// =============================================================================

// OutlierCheck identifies a suspicious value change.
type OutlierCheck struct {
	Line       models.LineItemKind `json:"line"`
	Period     string              `json:"period"`
	Value      float64             `json:"value"`
	PriorValue float64             `json:"prior_value"`
	ChangePct  *float64            `json:"change_pct"`
	IsOutlier  bool                `json:"is_outlier"`
	Reason     string              `json:"reason,omitempty"`
	Threshold  float64             `json:"threshold"`
}

// CheckForOutlier flags a drop to zero or a change beyond thresholdPct.
// Growth from a zero prior has no percentage and is never an outlier.
func CheckForOutlier(line models.LineItemKind, period string, current, prior, thresholdPct float64) OutlierCheck {
	check := OutlierCheck{
		Line:       line,
		Period:     period,
		Value:      current,
		PriorValue: prior,
		ChangePct:  yoyPtr(current, prior),
		Threshold:  thresholdPct,
	}

	if current == 0 && prior > 0 {
		check.IsOutlier = true
		check.Reason = "value dropped to zero (likely extraction error)"
		return check
	}
	if check.ChangePct != nil && math.Abs(*check.ChangePct) > thresholdPct {
		check.IsOutlier = true
		check.Reason = fmt.Sprintf("change of %.1f%% exceeds threshold of %.1f%%", *check.ChangePct, thresholdPct)
	}
	return check
}

// =============================================================================
// HISTORY
// =============================================================================

// LineTrend is the history of one statement row.
type LineTrend struct {
	Line     models.LineItemKind `json:"line"`
	Periods  []string            `json:"periods"`
	YoY      []YoYResult         `json:"yoy,omitempty"`
	CAGR     *float64            `json:"cagr,omitempty"`
	Outliers []OutlierCheck      `json:"outliers,omitempty"`
}

// History is the trend report over the checked statement rows. Rows with no
// known amount are omitted.
type History struct {
	Lines []LineTrend `json:"lines,omitempty"`
}

// Flags returns one message per outlier, oldest first within each line.
func (h History) Flags() []string {
	var out []string
	for _, lt := range h.Lines {
		for _, o := range lt.Outliers {
			out = append(out, fmt.Sprintf("%s %s: %s", lt.Line, o.Period, o.Reason))
		}
	}
	return out
}

// Line returns the trend for one row.
func (h History) Line(kind models.LineItemKind) (LineTrend, bool) {
	for _, lt := range h.Lines {
		if lt.Line == kind {
			return lt, true
		}
	}
	return LineTrend{}, false
}

// BuildHistory checks every TrendLines row of fs. thresholdPct <= 0 uses
// DefaultOutlierPct. CAGR spans the first and last known periods, counting
// each period step as one year.
func BuildHistory(fs *models.FinancialStatement, thresholdPct float64) History {
	if thresholdPct <= 0 {
		thresholdPct = DefaultOutlierPct
	}
	var h History
	if fs == nil {
		return h
	}
	periods := fs.OrderedPeriods()

	for _, kind := range TrendLines {
		lt := LineTrend{Line: kind}
		var (
			prevVal   float64
			prevLabel string
			firstVal  float64
			firstIdx  = -1
			lastVal   float64
			lastIdx   = -1
		)
		for i, p := range periods {
			v, ok := fs.Value(kind, p)
			if !ok {
				continue
			}
			lt.Periods = append(lt.Periods, p)
			if firstIdx < 0 {
				firstVal, firstIdx = v, i
			} else {
				lt.YoY = append(lt.YoY, YoYResult{
					Period:       p,
					PriorPeriod:  prevLabel,
					CurrentValue: v,
					PriorValue:   prevVal,
					ChangeAbs:    v - prevVal,
					ChangePct:    yoyPtr(v, prevVal),
				})
				if check := CheckForOutlier(kind, p, v, prevVal, thresholdPct); check.IsOutlier {
					lt.Outliers = append(lt.Outliers, check)
				}
			}
			prevVal, prevLabel = v, p
			lastVal, lastIdx = v, i
		}
		if len(lt.Periods) == 0 {
			continue
		}
		if lastIdx > firstIdx && firstVal > 0 {
			cagr := CalculateCAGR(firstVal, lastVal, lastIdx-firstIdx)
			lt.CAGR = &cagr
		}
		h.Lines = append(h.Lines, lt)
	}
	return h
}
