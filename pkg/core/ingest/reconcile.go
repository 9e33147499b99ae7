package ingest

import (
	"fmt"
	"math"

	"deal_engine/pkg/models"
)

// Checkpoint statuses.
const (
	StatusMatch      = "MATCH"
	StatusImmaterial = "IMMATERIAL"
	StatusMismatch   = "MATERIAL_MISMATCH"
)

// materialityPct is the relative gap, in percent, above which a reported
// subtotal disagrees with its parts.
const materialityPct = 5.0

// AuditCheckpoint compares a reported subtotal with the sum of its parts.
type AuditCheckpoint struct {
	CheckpointName  string  `json:"checkpoint_name"`
	Period          string  `json:"period"`
	ReportedValue   float64 `json:"reported_value"`
	CalculatedValue float64 `json:"calculated_value"`
	Variance        float64 `json:"variance"`
	Status          string  `json:"status"`
}

// Reconcile checks, for every period where all parts are known:
// gross profit = revenue - cost of revenue, and
// EBITDA = gross profit - operating expenses.
// Unknown amounts are skipped, never read as zero.
func Reconcile(fs *models.FinancialStatement) []AuditCheckpoint {
	type identity struct {
		name     string
		reported models.LineItemKind
		minuend  models.LineItemKind
		subtrah  models.LineItemKind
	}
	identities := []identity{
		{"Gross Profit", models.LineGrossProfit, models.LineRevenue, models.LineCostOfRevenue},
		{"EBITDA", models.LineEBITDA, models.LineGrossProfit, models.LineOperatingExpenses},
	}

	var checks []AuditCheckpoint
	for _, period := range fs.OrderedPeriods() {
		for _, id := range identities {
			reported, ok1 := fs.Value(id.reported, period)
			a, ok2 := fs.Value(id.minuend, period)
			b, ok3 := fs.Value(id.subtrah, period)
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			checks = append(checks, checkpoint(id.name, period, reported, a-b))
		}
	}
	return checks
}

func checkpoint(name, period string, reported, calculated float64) AuditCheckpoint {
	diff := calculated - reported
	status := StatusMatch
	if diff != 0 {
		status = StatusImmaterial
		if reported == 0 || math.Abs(diff/reported)*100 > materialityPct {
			status = StatusMismatch
		}
	}
	return AuditCheckpoint{
		CheckpointName:  name,
		Period:          period,
		ReportedValue:   reported,
		CalculatedValue: calculated,
		Variance:        diff,
		Status:          status,
	}
}

// Mismatches renders the material checkpoints as warnings.
func Mismatches(checks []AuditCheckpoint) []string {
	var out []string
	for _, c := range checks {
		if c.Status == StatusMismatch {
			out = append(out, fmt.Sprintf("%s %s: reported %.0f but parts sum to %.0f", c.Period, c.CheckpointName, c.ReportedValue, c.CalculatedValue))
		}
	}
	return out
}
