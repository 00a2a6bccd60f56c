package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"telemetryd/internal/models"
)

// Variant identifies which device family an ingest payload belongs to.
type Variant int

const (
	// VariantEnvironmental is the temp/hum board family.
	VariantEnvironmental Variant = iota
	// VariantBiometric is the wearable family keyed by device_id.
	VariantBiometric
	// VariantDiagnostic is everything else: free-form numeric fields.
	VariantDiagnostic
)

// Named slots of the unified Reading schema. Fields outside this set are
// collected into the extras map when numeric.
var namedFields = map[string]bool{
	"temp":          true,
	"hum":           true,
	"device_id":     true,
	"spo2":          true,
	"heart_rate":    true,
	"cpu_cores":     true,
	"flash_size_mb": true,
	"free_heap":     true,
	"timestamp":     true,
}

// DetectVariant picks the schema variant from the fields present.
// device_id marks a biometric payload; temp or hum marks an environmental
// one; anything else is generic diagnostics.
func DetectVariant(fields map[string]json.RawMessage) Variant {
	if present(fields, "device_id") {
		return VariantBiometric
	}
	if present(fields, "temp") || present(fields, "hum") {
		return VariantEnvironmental
	}
	return VariantDiagnostic
}

// ValidateReading checks required-field presence and JSON types for the
// detected variant. Pure: no clock, no store.
func ValidateReading(fields map[string]json.RawMessage) (Variant, error) {
	variant := DetectVariant(fields)

	switch variant {
	case VariantEnvironmental:
		var missing []string
		for _, f := range []string{"temp", "hum", "timestamp"} {
			if !present(fields, f) {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return variant, &MissingFieldError{Fields: missing}
		}
	case VariantBiometric:
		if !present(fields, "device_id") {
			return variant, &MissingFieldError{Fields: []string{"device_id"}}
		}
		if !isJSONString(fields["device_id"]) {
			return variant, &InvalidTypeError{Field: "device_id", Want: "string"}
		}
	case VariantDiagnostic:
		if !hasNumericField(fields) {
			return variant, &MissingFieldError{Fields: []string{"at least one numeric reading"}}
		}
	}

	for _, f := range []string{"temp", "hum", "spo2", "heart_rate"} {
		if present(fields, f) && !isJSONNumber(fields[f]) {
			return variant, &InvalidTypeError{Field: f, Want: "number"}
		}
	}
	for _, f := range []string{"cpu_cores", "flash_size_mb", "free_heap"} {
		if present(fields, f) && !isJSONInteger(fields[f]) {
			return variant, &InvalidTypeError{Field: f, Want: "integer"}
		}
	}
	if present(fields, "timestamp") {
		raw := trimmed(fields["timestamp"])
		if !isJSONString(raw) && !isJSONNumber(raw) {
			return variant, &InvalidTypeError{Field: "timestamp", Want: "string or number"}
		}
	}

	return variant, nil
}

// BuildReading validates a raw payload, normalizes its timestamp against
// now, and assembles the Reading to persist. Store bookkeeping (id,
// created_at, updated_at) is left for the store to assign.
func BuildReading(fields map[string]json.RawMessage, now time.Time) (*models.Reading, error) {
	if _, err := ValidateReading(fields); err != nil {
		return nil, err
	}

	ts, err := NormalizeTimestamp(fields["timestamp"], now)
	if err != nil {
		return nil, err
	}

	r := &models.Reading{Timestamp: ts}

	if present(fields, "device_id") {
		json.Unmarshal(fields["device_id"], &r.DeviceID)
	}
	r.Temperature = floatField(fields, "temp")
	r.Humidity = floatField(fields, "hum")
	r.SpO2 = floatField(fields, "spo2")
	r.HeartRate = floatField(fields, "heart_rate")
	r.CPUCores = intField(fields, "cpu_cores")
	r.FlashSizeMB = intField(fields, "flash_size_mb")
	r.FreeHeap = intField(fields, "free_heap")

	// Unknown numeric fields become extras; non-numeric strays are dropped.
	for name, raw := range fields {
		if namedFields[name] {
			continue
		}
		if v, ok := numericValue(raw); ok {
			if r.Extras == nil {
				r.Extras = make(map[string]float64)
			}
			r.Extras[name] = v
		}
	}

	return r, nil
}

func present(fields map[string]json.RawMessage, name string) bool {
	raw, ok := fields[name]
	if !ok {
		return false
	}
	return !isJSONNull(raw)
}

func trimmed(raw json.RawMessage) json.RawMessage {
	return json.RawMessage(strings.TrimSpace(string(raw)))
}

func isJSONNull(raw json.RawMessage) bool {
	return string(trimmed(raw)) == "null"
}

func isJSONString(raw json.RawMessage) bool {
	raw = trimmed(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func isJSONNumber(raw json.RawMessage) bool {
	_, ok := numericValue(raw)
	return ok
}

func isJSONInteger(raw json.RawMessage) bool {
	raw = trimmed(raw)
	_, err := strconv.ParseInt(string(raw), 10, 64)
	return err == nil
}

func numericValue(raw json.RawMessage) (float64, bool) {
	raw = trimmed(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func hasNumericField(fields map[string]json.RawMessage) bool {
	for name, raw := range fields {
		if name == "timestamp" {
			continue
		}
		if _, ok := numericValue(raw); ok {
			return true
		}
	}
	return false
}

func floatField(fields map[string]json.RawMessage, name string) *float64 {
	if !present(fields, name) {
		return nil
	}
	if v, ok := numericValue(fields[name]); ok {
		return &v
	}
	return nil
}

func intField(fields map[string]json.RawMessage, name string) *int64 {
	if !present(fields, name) {
		return nil
	}
	v, err := strconv.ParseInt(string(trimmed(fields[name])), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
