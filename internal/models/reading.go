package models

import "time"

// Reading represents a single persisted telemetry record.
// One flexible schema covers every device family the fleet has shipped:
// environmental boards send temp/hum, wearables send device_id plus vitals
// and board diagnostics, and anything else lands in Extras keyed by field
// name. Optional slots are pointers so absent and zero stay distinct.
type Reading struct {
	ID          string             `json:"id"`
	DeviceID    string             `json:"device_id,omitempty"`
	Temperature *float64           `json:"temp,omitempty"`
	Humidity    *float64           `json:"hum,omitempty"`
	SpO2        *float64           `json:"spo2,omitempty"`
	HeartRate   *float64           `json:"heart_rate,omitempty"`
	CPUCores    *int64             `json:"cpu_cores,omitempty"`
	FlashSizeMB *int64             `json:"flash_size_mb,omitempty"`
	FreeHeap    *int64             `json:"free_heap,omitempty"`
	Extras      map[string]float64 `json:"extras,omitempty"`
	Timestamp   time.Time          `json:"timestamp"` // always UTC
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IntervalPolicy is the ephemeral polling recommendation returned to a
// device. It is computed fresh on every request and never stored.
type IntervalPolicy struct {
	IntervalSeconds int       `json:"intervalSeconds"`
	ValidUntil      time.Time `json:"validUntil"`
	DeviceHint      string    `json:"deviceHint,omitempty"`
}
