package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"telemetryd/internal/models"
)

// Store is the slice of the telemetry store the handlers need.
type Store interface {
	Insert(ctx context.Context, r *models.Reading) (string, error)
	ListAll(ctx context.Context) ([]models.Reading, error)
	ListLatest(ctx context.Context, n int) ([]models.Reading, error)
	Count(ctx context.Context) (int64, error)
}

// ReadingBuilder turns a raw ingest payload into a validated Reading.
type ReadingBuilder func(fields map[string]json.RawMessage, now time.Time) (*models.Reading, error)

// TelemetryHandler serves the /api/telemetry endpoints.
type TelemetryHandler struct {
	store     Store
	build     ReadingBuilder
	formatter *Formatter
	logger    *slog.Logger
}

// NewTelemetryHandler creates a new TelemetryHandler instance
func NewTelemetryHandler(store Store, build ReadingBuilder, formatter *Formatter, logger *slog.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		store:     store,
		build:     build,
		formatter: formatter,
		logger:    logger,
	}
}

// CreateResponse is the body of a successful ingest.
// Dato echoes the persisted record with both timestamp renderings; the key
// names are the wire contract the device fleet already speaks.
type CreateResponse struct {
	Message string          `json:"message"`
	ID      string          `json:"id"`
	Dato    ReadingResponse `json:"dato"`
}

// CountResponse is the body of the count endpoint. total_registros is the
// canonical key; deployed firmware parses it.
type CountResponse struct {
	TotalRegistros int64 `json:"total_registros"`
}

// Create handles POST /api/telemetry. Validation runs before any store
// access, so a rejected payload never leaves a partial record.
func (h *TelemetryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	reading, err := h.build(fields, time.Now().UTC())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	// Deliberately not the request context: a device dropping the
	// connection mid-upload must not lose the reading.
	id, err := h.store.Insert(context.Background(), reading)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("reading saved",
		"id", id,
		"device", reading.DeviceID,
		"timestamp", reading.Timestamp.Format(time.RFC3339),
	)

	writeJSON(w, http.StatusCreated, CreateResponse{
		Message: "Dato guardado correctamente",
		ID:      id,
		Dato:    h.formatter.FormatReading(*reading),
	})
}

// List handles GET /api/telemetry: every reading, newest first.
func (h *TelemetryHandler) List(w http.ResponseWriter, r *http.Request) {
	readings, err := h.store.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.formatter.FormatReadings(readings))
}

// Latest handles GET /api/telemetry/last/{n}. A missing or non-numeric n
// defaults to 1; the store clamps n below 1 up to 1.
func (h *TelemetryHandler) Latest(w http.ResponseWriter, r *http.Request) {
	n := 1
	if raw, ok := mux.Vars(r)["n"]; ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}

	readings, err := h.store.ListLatest(r.Context(), n)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.formatter.FormatReadings(readings))
}

// Count handles GET /api/telemetry/count.
func (h *TelemetryHandler) Count(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.Count(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{TotalRegistros: total})
}
