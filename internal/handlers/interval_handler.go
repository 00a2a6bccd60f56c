package handlers

import (
	"net/http"
	"time"

	"telemetryd/internal/services"
)

// IntervalHandler serves GET /api/update-interval.
type IntervalHandler struct {
	engine    *services.IntervalEngine
	formatter *Formatter
}

// NewIntervalHandler creates a new IntervalHandler instance
func NewIntervalHandler(engine *services.IntervalEngine, formatter *Formatter) *IntervalHandler {
	return &IntervalHandler{engine: engine, formatter: formatter}
}

// IntervalResponse tells a device how long to wait before polling again.
type IntervalResponse struct {
	IntervalSeconds int    `json:"intervalSeconds"`
	IntervalMs      int    `json:"intervalMs"`
	ValidUntil      string `json:"validUntil"`
	NextCheckHint   string `json:"nextCheckHint"`
	Message         string `json:"message"`
	Device          string `json:"device,omitempty"`
}

// Handle computes a fresh interval for the requesting device. The device
// query parameter is an optional cohort hint.
func (h *IntervalHandler) Handle(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")

	policy := h.engine.Compute(device)

	writeJSON(w, http.StatusOK, IntervalResponse{
		IntervalSeconds: policy.IntervalSeconds,
		IntervalMs:      policy.IntervalSeconds * 1000,
		ValidUntil:      policy.ValidUntil.Format(time.RFC3339),
		NextCheckHint:   h.formatter.FormatLocal(policy.ValidUntil),
		Message:         "Intervalo de sondeo asignado",
		Device:          device,
	})
}
