package handler

import (
	"log/slog"
	"net/http"

	"github.com/matthewbaird/strata/internal/event"
	"github.com/matthewbaird/strata/internal/levy"
)

// LevyHandler implements the levy calculator endpoints.
type LevyHandler struct {
	calc *levy.Calculator
	recorder
}

// NewLevyHandler creates a new LevyHandler.
func NewLevyHandler(calc *levy.Calculator, rec event.Recorder, logger *slog.Logger) *LevyHandler {
	return &LevyHandler{calc: calc, recorder: newRecorder(rec, logger)}
}

// Calculate prices a unit.
// POST /v1/levy
func (h *LevyHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req levy.Request
	if err := decodeJSON(w, r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	res, err := h.calc.Calculate(req)
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	h.recordEvent(r.Context(), event.NewLevyCalculated(event.LevyCalculatedPayload{
		CalculationID: res.CalculationID,
		UnitType:      res.Breakdown.UnitType,
		UnitSize:      res.Breakdown.UnitSize,
		Floor:         res.Breakdown.Floor,
		MonthlyLevy:   res.MonthlyLevy,
		Currency:      res.Currency,
		CalculatedAt:  res.CalculatedAt,
	}))
	writeJSON(w, http.StatusOK, res)
}

// Describe documents the calculation payload.
// GET /v1/levy
func (h *LevyHandler) Describe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.calc.Describe(r.URL.Path))
}
