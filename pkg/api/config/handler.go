package config

import (
	"encoding/json"
	"net/http"

	"deal_engine/pkg/core/dscr"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/core/pipeline"
	"deal_engine/pkg/models"
)

// IndustrySummary is the public view of one industry table entry.
type IndustrySummary struct {
	Type          models.IndustryType     `json:"type"`
	PrimaryMetric models.ValuationMetric  `json:"primary_metric"`
	MultipleRange models.MultipleRange    `json:"multiple_range"`
	Financing     models.FinancingProfile `json:"financing"`
}

type Response struct {
	Thresholds dscr.Thresholds   `json:"thresholds"`
	Industries []IndustrySummary `json:"industries"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Orch   *pipeline.Orchestrator
	Tables *knowledge.Tables
}

// NewHandler creates a new config handler
func NewHandler(orch *pipeline.Orchestrator, tables *knowledge.Tables) *Handler {
	return &Handler{
		Orch:   orch,
		Tables: tables,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	resp := Response{Thresholds: h.Orch.Thresholds()}
	for _, def := range h.Tables.Industries() {
		resp.Industries = append(resp.Industries, IndustrySummary{
			Type:          def.Type,
			PrimaryMetric: def.Valuation.PrimaryMetric,
			MultipleRange: def.Valuation.MultipleRange,
			Financing:     def.Financing,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleThresholds replaces the lender thresholds used to grade coverage.
func (h *Handler) HandleThresholds(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dscr.Thresholds
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Orch.SetThresholds(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Orch.Thresholds())
}
