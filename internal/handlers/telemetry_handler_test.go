package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"telemetryd/internal/models"
	"telemetryd/internal/services"
)

type stubStore struct {
	inserted  []*models.Reading
	readings  []models.Reading
	total     int64
	insertErr error
	listErr   error
	latestN   int
}

func (s *stubStore) Insert(_ context.Context, r *models.Reading) (string, error) {
	if s.insertErr != nil {
		return "", s.insertErr
	}
	r.ID = "reading-1"
	r.CreatedAt = time.Date(2025, 11, 20, 21, 0, 0, 0, time.UTC)
	r.UpdatedAt = r.CreatedAt
	s.inserted = append(s.inserted, r)
	s.total++
	return r.ID, nil
}

func (s *stubStore) ListAll(_ context.Context) ([]models.Reading, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.readings, nil
}

func (s *stubStore) ListLatest(_ context.Context, n int) ([]models.Reading, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.latestN = n
	if n < 1 {
		n = 1
	}
	if n > len(s.readings) {
		n = len(s.readings)
	}
	return s.readings[:n], nil
}

func (s *stubStore) Count(_ context.Context) (int64, error) {
	if s.listErr != nil {
		return 0, s.listErr
	}
	return s.total, nil
}

func newTestHandler(t *testing.T, store *stubStore) *TelemetryHandler {
	t.Helper()
	formatter, err := NewFormatter("America/Mexico_City")
	if err != nil {
		t.Fatalf("failed to build formatter: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTelemetryHandler(store, services.BuildReading, formatter, logger)
}

func TestCreatePersistsAndEchoes(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(t, store)

	body := `{"temp": 21.5, "hum": 55.2, "timestamp": "2025-11-20T14:46:53-06:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/telemetry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.inserted))
	}

	var payload CreateResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.ID != "reading-1" {
		t.Fatalf("expected assigned id, got %q", payload.ID)
	}
	if payload.Message != "Dato guardado correctamente" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
	if payload.Dato.TimestampUTC != "2025-11-20T20:46:53Z" {
		t.Fatalf("expected UTC timestamp, got %q", payload.Dato.TimestampUTC)
	}
	if payload.Dato.TimestampLocal != "20/11/2025 14:46:53" {
		t.Fatalf("expected Mexico City local timestamp, got %q", payload.Dato.TimestampLocal)
	}
}

func TestCreateRejectsMalformedTimestampBeforePersisting(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(t, store)

	body := `{"temp": 21.5, "hum": 55.2, "timestamp": "not-a-date"}`
	req := httptest.NewRequest(http.MethodPost, "/api/telemetry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no insert, got %d", len(store.inserted))
	}

	var payload ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error == "" {
		t.Fatalf("expected an error field")
	}
}

func TestCreateRejectsMissingField(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(t, store)

	body := `{"hum": 55.2, "timestamp": 1700000000}`
	req := httptest.NewRequest(http.MethodPost, "/api/telemetry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no insert, got %d", len(store.inserted))
	}

	var payload ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(payload.Error, "temp") {
		t.Fatalf("expected error to name temp, got %q", payload.Error)
	}
}

func TestCreateMapsStoreFailureTo500(t *testing.T) {
	store := &stubStore{insertErr: &services.PersistenceError{Op: "insert", Err: errors.New("disk full")}}
	h := newTestHandler(t, store)

	body := `{"temp": 21.5, "hum": 55.2, "timestamp": 1700000000}`
	req := httptest.NewRequest(http.MethodPost, "/api/telemetry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.StatusCode)
	}

	var payload ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if strings.Contains(payload.Error, "disk full") {
		t.Fatalf("store detail leaked to client: %q", payload.Error)
	}
}

func TestListReturnsFormattedReadings(t *testing.T) {
	temp := 21.5
	store := &stubStore{readings: []models.Reading{
		{
			ID:          "r1",
			Temperature: &temp,
			Timestamp:   time.Date(2025, 11, 20, 20, 46, 53, 0, time.UTC),
			CreatedAt:   time.Date(2025, 11, 20, 20, 47, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2025, 11, 20, 20, 47, 0, 0, time.UTC),
		},
	}}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry", nil)
	rr := httptest.NewRecorder()

	h.List(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var payload []ReadingResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(payload))
	}
	if payload[0].TimestampUTC != "2025-11-20T20:46:53Z" {
		t.Fatalf("unexpected UTC timestamp %q", payload[0].TimestampUTC)
	}
	if payload[0].TimestampLocal != "20/11/2025 14:46:53" {
		t.Fatalf("unexpected local timestamp %q", payload[0].TimestampLocal)
	}
}

func TestListEmptyStoreReturnsEmptyArray(t *testing.T) {
	store := &stubStore{readings: []models.Reading{}}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry", nil)
	rr := httptest.NewRecorder()

	h.List(rr, req)

	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestLatestParsesPathParam(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry/last/3", nil)
	req = mux.SetURLVars(req, map[string]string{"n": "3"})
	rr := httptest.NewRecorder()

	h.Latest(rr, req)

	if rr.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Result().StatusCode)
	}
	if store.latestN != 3 {
		t.Fatalf("expected ListLatest(3), got %d", store.latestN)
	}
}

func TestLatestDefaultsNonNumericParamToOne(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry/last/plenty", nil)
	req = mux.SetURLVars(req, map[string]string{"n": "plenty"})
	rr := httptest.NewRecorder()

	h.Latest(rr, req)

	if store.latestN != 1 {
		t.Fatalf("expected ListLatest(1), got %d", store.latestN)
	}
}

func TestCountUsesCanonicalKey(t *testing.T) {
	store := &stubStore{total: 7}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry/count", nil)
	rr := httptest.NewRecorder()

	h.Count(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var payload map[string]int64
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload["total_registros"] != 7 {
		t.Fatalf("expected total_registros 7, got %v", payload)
	}
}

func TestCountMapsStoreFailureTo500(t *testing.T) {
	store := &stubStore{listErr: &services.PersistenceError{Op: "count", Err: errors.New("connection refused")}}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry/count", nil)
	rr := httptest.NewRecorder()

	h.Count(rr, req)

	if rr.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Result().StatusCode)
	}
}
