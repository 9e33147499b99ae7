// Package dscr grades debt-service coverage against lender thresholds.
package dscr

import (
	"fmt"

	"deal_engine/pkg/models"
)

const (
	// Critical is the coverage below which the business cannot pay its debt.
	Critical = 1.0

	DefaultMinimum = 1.25
	DefaultStrong  = 1.5
)

// Thresholds are the lender covenants a year is graded against.
type Thresholds struct {
	Minimum float64 `yaml:"minimum" json:"minimum"`
	Strong  float64 `yaml:"strong" json:"strong"`
}

// DefaultThresholds is minimum 1.25x, strong 1.5x.
func DefaultThresholds() Thresholds {
	return Thresholds{Minimum: DefaultMinimum, Strong: DefaultStrong}
}

// Validate requires 1.0 <= minimum <= strong.
func (t Thresholds) Validate() error {
	if t.Minimum < Critical || t.Strong < t.Minimum {
		return fmt.Errorf("dscr thresholds: need %.2f <= minimum (%.2f) <= strong (%.2f)", Critical, t.Minimum, t.Strong)
	}
	return nil
}

// Grade classifies one year's coverage.
//
// < 1.0 critical, [1.0, minimum) warning, [minimum, strong) acceptable,
// >= strong excellent.
func (t Thresholds) Grade(v float64) models.DSCRStatus {
	switch {
	case v < Critical:
		return models.DSCRCritical
	case v < t.Minimum:
		return models.DSCRWarning
	case v < t.Strong:
		return models.DSCRAcceptable
	default:
		return models.DSCRExcellent
	}
}

// Analyze grades a DSCR series. A nil entry (no debt service that year) is
// graded excellent, never breaches and is left out of the min and average.
//
// Overall: critical if any year is below 1.0, else warning if any year is
// below the minimum, else excellent if the average reaches strong, else
// acceptable. A series with no graded year is excellent with nil min/avg.
func Analyze(series []*float64, t Thresholds) models.DSCRAssessment {
	out := models.DSCRAssessment{Years: make([]models.DSCRYear, 0, len(series))}

	var (
		sum      float64
		count    int
		lowest   float64
		critical bool
		breached bool
	)
	for i, v := range series {
		year := models.DSCRYear{Year: i + 1, Status: models.DSCRExcellent}
		if v != nil {
			value := *v
			year.Value = &value
			year.Status = t.Grade(value)
			year.ThresholdBreached = value < t.Minimum

			if count == 0 || value < lowest {
				lowest = value
			}
			sum += value
			count++
			critical = critical || value < Critical
			breached = breached || year.ThresholdBreached
		}
		out.Years = append(out.Years, year)
	}

	if count == 0 {
		out.OverallStatus = models.DSCRExcellent
		return out
	}

	avg := sum / float64(count)
	out.MinDSCR = &lowest
	out.AvgDSCR = &avg

	switch {
	case critical:
		out.OverallStatus = models.DSCRCritical
	case breached:
		out.OverallStatus = models.DSCRWarning
	case avg >= t.Strong:
		out.OverallStatus = models.DSCRExcellent
	default:
		out.OverallStatus = models.DSCRAcceptable
	}
	return out
}

// Rank orders statuses from best (0) to worst (3).
func Rank(s models.DSCRStatus) int {
	switch s {
	case models.DSCRExcellent:
		return 0
	case models.DSCRAcceptable:
		return 1
	case models.DSCRWarning:
		return 2
	default:
		return 3
	}
}
