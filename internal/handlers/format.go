package handlers

import (
	"fmt"
	"time"

	"telemetryd/internal/models"
)

const localLayout = "02/01/2006 15:04:05"

// ReadingResponse is the wire shape of a reading. Beyond the stored fields
// it carries the timestamp twice: once canonical UTC, once rendered in the
// configured display zone for humans. The stored value is never altered.
type ReadingResponse struct {
	ID             string             `json:"id"`
	DeviceID       string             `json:"device_id,omitempty"`
	Temperature    *float64           `json:"temp,omitempty"`
	Humidity       *float64           `json:"hum,omitempty"`
	SpO2           *float64           `json:"spo2,omitempty"`
	HeartRate      *float64           `json:"heart_rate,omitempty"`
	CPUCores       *int64             `json:"cpu_cores,omitempty"`
	FlashSizeMB    *int64             `json:"flash_size_mb,omitempty"`
	FreeHeap       *int64             `json:"free_heap,omitempty"`
	Extras         map[string]float64 `json:"extras,omitempty"`
	TimestampUTC   string             `json:"timestamp_utc"`
	TimestampLocal string             `json:"timestamp_local"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
}

// Formatter renders readings for responses. Display-timezone conversion
// happens here and nowhere else.
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter for the given IANA timezone name.
func NewFormatter(timezone string) (*Formatter, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load display timezone %q: %w", timezone, err)
	}
	return &Formatter{loc: loc}, nil
}

// FormatReading builds the response shape for one reading.
func (f *Formatter) FormatReading(r models.Reading) ReadingResponse {
	return ReadingResponse{
		ID:             r.ID,
		DeviceID:       r.DeviceID,
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		SpO2:           r.SpO2,
		HeartRate:      r.HeartRate,
		CPUCores:       r.CPUCores,
		FlashSizeMB:    r.FlashSizeMB,
		FreeHeap:       r.FreeHeap,
		Extras:         r.Extras,
		TimestampUTC:   r.Timestamp.UTC().Format(time.RFC3339),
		TimestampLocal: r.Timestamp.In(f.loc).Format(localLayout),
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// FormatReadings maps a slice, keeping an empty (non-nil) slice for empty
// stores so clients always see a JSON array.
func (f *Formatter) FormatReadings(readings []models.Reading) []ReadingResponse {
	out := make([]ReadingResponse, 0, len(readings))
	for _, r := range readings {
		out = append(out, f.FormatReading(r))
	}
	return out
}

// FormatLocal renders an instant in the display zone.
func (f *Formatter) FormatLocal(t time.Time) string {
	return t.In(f.loc).Format(localLayout)
}
