// Package pipeline runs the deal model end to end: classify the business,
// generate assumptions, build the debt-service summary and the five-year
// projection, and grade coverage.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"deal_engine/pkg/core/assumption"
	"deal_engine/pkg/core/classifier"
	"deal_engine/pkg/core/dscr"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/core/projection"
	"deal_engine/pkg/core/store"
	"deal_engine/pkg/core/validate"
	"deal_engine/pkg/core/valuation"
	"deal_engine/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Input is one uploaded deal.
type Input struct {
	Statement      *models.FinancialStatement     `json:"statement"`
	DocumentText   string                         `json:"document_text"`
	FileName       string                         `json:"file_name"`
	ExtractedPrice *models.ExtractedPurchasePrice `json:"extracted_price,omitempty"`

	// IndustryOverride skips classification.
	IndustryOverride models.IndustryType `json:"industry_override,omitempty"`
	CustomExitValue  *float64            `json:"custom_exit_value,omitempty"`
	Edit             assumption.Edit     `json:"edit"`

	// Warnings raised before the pipeline (ingest) are carried through.
	Warnings []string `json:"warnings,omitempty"`
}

// Result is everything the deal screen renders.
type Result struct {
	ScenarioID   string                  `json:"scenario_id"`
	Profile      models.BusinessProfile  `json:"profile"`
	Assumptions  models.Assumptions      `json:"assumptions"`
	CapitalStack valuation.CapitalStack  `json:"capital_stack"`
	DebtService  models.DebtServiceModel `json:"debt_service"`
	Projection   models.ProjectionResult `json:"projection"`
	DSCR         models.DSCRAssessment   `json:"dscr"`
	History      validate.History        `json:"history"`
	Warnings     []string                `json:"warnings,omitempty"`
}

// Orchestrator wires the engine components. It holds no per-deal state and
// is safe for concurrent use.
type Orchestrator struct {
	classifier *classifier.Classifier
	generator  *assumption.Generator
	projector  *projection.Projector
	repo       store.ScenarioRepository
	logger     *zap.Logger

	mu         sync.RWMutex
	thresholds dscr.Thresholds
}

// NewOrchestrator creates an orchestrator over one set of industry tables.
func NewOrchestrator(tables *knowledge.Tables, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		classifier: classifier.New(tables, logger),
		generator:  assumption.NewGenerator(tables, logger),
		projector:  projection.NewProjector(tables, logger),
		thresholds: dscr.DefaultThresholds(),
		logger:     logger,
	}
}

// SetRepository enables RunAndSave.
func (o *Orchestrator) SetRepository(repo store.ScenarioRepository) {
	o.repo = repo
}

// Repository returns the configured repository, or nil.
func (o *Orchestrator) Repository() store.ScenarioRepository {
	return o.repo
}

// SetThresholds replaces the lender thresholds used for grading.
func (o *Orchestrator) SetThresholds(t dscr.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.thresholds = t
	o.mu.Unlock()
	return nil
}

// Thresholds returns the lender thresholds in use.
func (o *Orchestrator) Thresholds() dscr.Thresholds {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.thresholds
}

// Classifier exposes the classifier for single-step callers.
func (o *Orchestrator) Classifier() *classifier.Classifier { return o.classifier }

// Generator exposes the assumption generator for single-step callers.
func (o *Orchestrator) Generator() *assumption.Generator { return o.generator }

// Projector exposes the projector for single-step callers.
func (o *Orchestrator) Projector() *projection.Projector { return o.projector }

// Profile classifies the deal unless the input overrides the industry.
func (o *Orchestrator) Profile(in Input) models.BusinessProfile {
	if in.IndustryOverride != "" {
		return o.classifier.Profile(in.IndustryOverride)
	}
	return o.classifier.Classify(in.DocumentText, in.FileName, in.Statement)
}

// Run executes the full model for one deal.
func (o *Orchestrator) Run(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	if in.Statement == nil {
		in.Statement = models.NewFinancialStatement()
	}

	profile := o.Profile(in)
	base, err := o.generator.Generate(in.Statement, profile, in.ExtractedPrice)
	if err != nil {
		return Result{}, fmt.Errorf("generate assumptions: %w", err)
	}

	a := base
	if !in.Edit.IsEmpty() {
		if a, err = assumption.Apply(base, in.Edit); err != nil {
			return Result{}, fmt.Errorf("apply edit: %w", err)
		}
	}

	res, err := o.Evaluate(ctx, in.Statement, a, in.CustomExitValue)
	if err != nil {
		return Result{}, err
	}
	res.Profile = profile
	res.Warnings = append(append([]string(nil), in.Warnings...), res.Warnings...)

	o.logger.Info("[PIPELINE] Deal modelled",
		zap.String("scenario_id", res.ScenarioID),
		zap.String("industry", string(profile.IndustryType)),
		zap.Int("confidence", profile.ConfidenceScore),
		zap.Float64("purchase_price", a.PurchasePrice),
		zap.String("dscr_status", string(res.DSCR.OverallStatus)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Evaluate re-projects a finished assumption set. Every call is a full,
// independent rebuild from the unmodified statement.
func (o *Orchestrator) Evaluate(ctx context.Context, fs *models.FinancialStatement, a models.Assumptions, customExitValue *float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if fs == nil {
		fs = models.NewFinancialStatement()
	}

	ds, err := o.projector.BuildDebtServiceModel(fs, a)
	if err != nil {
		return Result{}, fmt.Errorf("debt-service model: %w", err)
	}
	proj, err := o.projector.BuildFiveYearModel(fs, &ds, a, customExitValue)
	if err != nil {
		return Result{}, err
	}

	return Result{
		ScenarioID:   uuid.New().String(),
		Assumptions:  a,
		CapitalStack: valuation.BuildCapitalStack(a, fs),
		DebtService:  ds,
		Projection:   proj,
		DSCR:         dscr.Analyze(proj.DSCR, o.Thresholds()),
		History:      validate.BuildHistory(fs, validate.DefaultOutlierPct),
		Warnings:     proj.Warnings,
	}, nil
}

// RunAndSave runs the model and stores the scenario under name. The stored ID
// replaces the result's scenario ID.
func (o *Orchestrator) RunAndSave(ctx context.Context, name string, in Input) (Result, error) {
	if o.repo == nil {
		return Result{}, fmt.Errorf("no scenario repository configured")
	}
	res, err := o.Run(ctx, in)
	if err != nil {
		return Result{}, err
	}
	saved, err := o.repo.Save(ctx, store.Scenario{
		ID:          res.ScenarioID,
		Name:        name,
		Assumptions: res.Assumptions,
		Result:      res.Projection,
	})
	if err != nil {
		return Result{}, fmt.Errorf("storage failed: %w", err)
	}
	res.ScenarioID = saved.ID
	return res, nil
}

// ============================================================================
// Sensitivity sweep
// ============================================================================

// SweepResult is one scenario of a sweep. Err is set when the edit produced
// an invalid assumption set; other scenarios are unaffected.
type SweepResult struct {
	Edit   assumption.Edit `json:"edit"`
	Result *Result         `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// Sweep classifies and generates once, then evaluates every edit against the
// same base assumptions in parallel. Results keep the order of edits. The
// returned base is the unedited assumption set.
func (o *Orchestrator) Sweep(ctx context.Context, in Input, edits []assumption.Edit) (models.Assumptions, []SweepResult, error) {
	if in.Statement == nil {
		in.Statement = models.NewFinancialStatement()
	}
	profile := o.Profile(in)
	base, err := o.generator.Generate(in.Statement, profile, in.ExtractedPrice)
	if err != nil {
		return models.Assumptions{}, nil, fmt.Errorf("generate assumptions: %w", err)
	}
	if !in.Edit.IsEmpty() {
		if base, err = assumption.Apply(base, in.Edit); err != nil {
			return models.Assumptions{}, nil, fmt.Errorf("apply edit: %w", err)
		}
	}

	out := make([]SweepResult, len(edits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, e := range edits {
		g.Go(func() error {
			out[i].Edit = e
			a, err := assumption.Apply(base, e)
			if err != nil {
				out[i].Err = err.Error()
				return nil
			}
			res, err := o.Evaluate(gctx, in.Statement, a, in.CustomExitValue)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				out[i].Err = err.Error()
				return nil
			}
			res.Profile = profile
			out[i].Result = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Assumptions{}, nil, fmt.Errorf("sweep: %w", err)
	}

	o.logger.Info("[PIPELINE] Sweep complete",
		zap.String("industry", string(profile.IndustryType)),
		zap.Int("scenarios", len(edits)))
	return base, out, nil
}
