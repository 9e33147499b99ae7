// Package deal exposes the deal engine over JSON/HTTP.
package deal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"deal_engine/pkg/core/assumption"
	"deal_engine/pkg/core/dscr"
	"deal_engine/pkg/core/ingest"
	"deal_engine/pkg/core/pipeline"
	"deal_engine/pkg/core/store"
	"deal_engine/pkg/models"

	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; statements are small.
const maxBodyBytes = 4 << 20

// Handler holds dependencies for deal endpoints.
type Handler struct {
	orch   *pipeline.Orchestrator
	logger *zap.Logger
}

// NewHandler creates a new deal handler.
func NewHandler(orch *pipeline.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orch: orch, logger: logger}
}

// Register mounts every deal route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/deal/classify", cors(h.HandleClassify))
	mux.HandleFunc("/api/deal/assumptions", cors(h.HandleAssumptions))
	mux.HandleFunc("/api/deal/debt-service", cors(h.HandleDebtService))
	mux.HandleFunc("/api/deal/five-year", cors(h.HandleFiveYear))
	mux.HandleFunc("/api/deal/dscr", cors(h.HandleDSCR))
	mux.HandleFunc("/api/deal/model", cors(h.HandleModel))
	mux.HandleFunc("/api/deal/sweep", cors(h.HandleSweep))
	mux.HandleFunc("GET /api/deal/scenarios", h.HandleListScenarios)
	mux.HandleFunc("GET /api/deal/scenarios/{id}", h.HandleGetScenario)
}

// Routes lists the mounted routes for the startup banner.
func Routes() []string {
	return []string{
		"POST /api/deal/classify",
		"POST /api/deal/assumptions",
		"POST /api/deal/debt-service",
		"POST /api/deal/five-year",
		"POST /api/deal/dscr",
		"POST /api/deal/model",
		"POST /api/deal/sweep",
		"GET  /api/deal/scenarios",
		"GET  /api/deal/scenarios/{id}",
	}
}

// ============================================================================
// Requests
// ============================================================================

// dealRequest carries an upload payload (statement, document text, file
// name, extracted price) plus the caller's overrides.
type dealRequest struct {
	Deal             json.RawMessage     `json:"deal"`
	IndustryOverride models.IndustryType `json:"industry_override"`
	CustomExitValue  *float64            `json:"custom_exit_value"`
	Edit             assumption.Edit     `json:"edit"`
	SaveAs           string              `json:"save_as"`
}

type modelRequest struct {
	Statement        json.RawMessage          `json:"statement"`
	Assumptions      json.RawMessage          `json:"assumptions"`
	DebtServiceModel *models.DebtServiceModel `json:"debt_service_model"`
	CustomExitValue  *float64                 `json:"custom_exit_value"`
}

type dscrRequest struct {
	DSCR       []*float64       `json:"dscr"`
	Thresholds *dscr.Thresholds `json:"thresholds"`
}

type sweepRequest struct {
	dealRequest
	Edits []assumption.Edit `json:"edits"`
}

type assumptionsResponse struct {
	Profile     models.BusinessProfile   `json:"profile"`
	Assumptions models.Assumptions       `json:"assumptions"`
	Estimate    assumption.PriceEstimate `json:"price_estimate"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

type sweepResponse struct {
	Base      models.Assumptions     `json:"base"`
	Scenarios []pipeline.SweepResult `json:"scenarios"`
}

type errorResponse struct {
	Error      string                      `json:"error"`
	Violations []assumption.FieldViolation `json:"violations,omitempty"`
}

// ============================================================================
// Handlers
// ============================================================================

func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDealRequest(w, r)
	if !ok {
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orch.Profile(in))
}

func (h *Handler) HandleAssumptions(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDealRequest(w, r)
	if !ok {
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.fail(w, err)
		return
	}

	profile := h.orch.Profile(in)
	a, err := h.orch.Generator().Generate(in.Statement, profile, in.ExtractedPrice)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !in.Edit.IsEmpty() {
		if a, err = assumption.Apply(a, in.Edit); err != nil {
			h.fail(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, assumptionsResponse{
		Profile:     profile,
		Assumptions: a,
		Estimate:    h.orch.Generator().EstimatePrice(in.Statement, profile),
		Warnings:    in.Warnings,
	})
}

func (h *Handler) HandleDebtService(w http.ResponseWriter, r *http.Request) {
	fs, a, _, ok := h.decodeModelRequest(w, r)
	if !ok {
		return
	}
	ds, err := h.orch.Projector().BuildDebtServiceModel(fs, a)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) HandleFiveYear(w http.ResponseWriter, r *http.Request) {
	fs, a, req, ok := h.decodeModelRequest(w, r)
	if !ok {
		return
	}
	res, err := h.orch.Projector().BuildFiveYearModel(fs, req.DebtServiceModel, a, req.CustomExitValue)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleDSCR(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req dscrRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	t := h.orch.Thresholds()
	if req.Thresholds != nil {
		if err := req.Thresholds.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		t = *req.Thresholds
	}
	writeJSON(w, http.StatusOK, dscr.Analyze(req.DSCR, t))
}

func (h *Handler) HandleModel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDealRequest(w, r)
	if !ok {
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.fail(w, err)
		return
	}

	var res pipeline.Result
	if req.SaveAs != "" {
		if h.orch.Repository() == nil {
			writeError(w, http.StatusServiceUnavailable, "scenario storage is not configured")
			return
		}
		res, err = h.orch.RunAndSave(r.Context(), req.SaveAs, in)
	} else {
		res, err = h.orch.Run(r.Context(), in)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req sweepRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Edits) == 0 {
		writeError(w, http.StatusBadRequest, "edits is empty")
		return
	}
	in, err := h.input(req.dealRequest)
	if err != nil {
		h.fail(w, err)
		return
	}

	base, scenarios, err := h.orch.Sweep(r.Context(), in, req.Edits)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Base: base, Scenarios: scenarios})
}

func (h *Handler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	repo := h.orch.Repository()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "scenario storage is not configured")
		return
	}
	s, err := repo.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	repo := h.orch.Repository()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "scenario storage is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := repo.List(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []store.Scenario{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ============================================================================
// Helpers
// ============================================================================

func (h *Handler) decodeDealRequest(w http.ResponseWriter, r *http.Request) (dealRequest, bool) {
	if !requirePost(w, r) {
		return dealRequest{}, false
	}
	var req dealRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return dealRequest{}, false
	}
	return req, true
}

// decodeModelRequest reads a statement and a client-held assumption set.
// The statement is decoded leniently; the assumptions must validate.
func (h *Handler) decodeModelRequest(w http.ResponseWriter, r *http.Request) (*models.FinancialStatement, models.Assumptions, modelRequest, bool) {
	if !requirePost(w, r) {
		return nil, models.Assumptions{}, modelRequest{}, false
	}
	var req modelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, models.Assumptions{}, modelRequest{}, false
	}

	fs := models.NewFinancialStatement()
	if present(req.Statement) {
		st, err := ingest.DecodeStatement(req.Statement)
		if err != nil {
			h.fail(w, err)
			return nil, models.Assumptions{}, modelRequest{}, false
		}
		fs = st.Statement
		for _, warn := range st.Warnings {
			h.logger.Info("[API] Statement warning", zap.String("warning", warn))
		}
	}

	if !present(req.Assumptions) {
		writeError(w, http.StatusBadRequest, "assumptions are required")
		return nil, models.Assumptions{}, modelRequest{}, false
	}
	a, err := assumption.FromJSON(req.Assumptions)
	if err != nil {
		h.fail(w, err)
		return nil, models.Assumptions{}, modelRequest{}, false
	}
	return fs, a, req, true
}

func (h *Handler) input(req dealRequest) (pipeline.Input, error) {
	in := pipeline.Input{
		IndustryOverride: req.IndustryOverride,
		CustomExitValue:  req.CustomExitValue,
		Edit:             req.Edit,
	}
	if !present(req.Deal) {
		in.Statement = models.NewFinancialStatement()
		in.Warnings = []string{"no deal payload; modelling without financials"}
		return in, nil
	}

	d, err := ingest.DecodeDeal(req.Deal)
	if err != nil {
		return pipeline.Input{}, err
	}
	in.Statement = d.Statement
	in.DocumentText = d.DocumentText
	in.FileName = d.FileName
	in.ExtractedPrice = d.ExtractedPrice
	in.Warnings = d.Warnings
	return in, nil
}

// fail maps engine errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verr *assumption.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Violations: verr.Violations})
	case errors.Is(err, assumption.ErrInvalidAssumptions):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ingest.ErrEmptyPayload), errors.Is(err, store.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("[API] Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s not allowed", r.Method))
		return false
	}
	return true
}

func present(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

// cors adds the headers the local UI needs and answers preflight requests.
func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
