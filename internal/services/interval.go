package services

import (
	"math/rand"
	"strings"
	"time"

	"telemetryd/internal/models"
)

const (
	minIntervalSeconds = 4
	maxIntervalSeconds = 60
	labAdjustSeconds   = 2
)

// IntervalEngine computes polling-interval recommendations for devices.
// Every call is independent; nothing is persisted.
type IntervalEngine struct {
	// rng overrides the global source in tests; nil means the shared
	// math/rand source, which is safe for concurrent requests.
	rng *rand.Rand
	now func() time.Time
}

// NewIntervalEngine creates a new IntervalEngine instance
func NewIntervalEngine() *IntervalEngine {
	return &IntervalEngine{now: time.Now}
}

// Compute draws a polling interval uniformly from [4, 60] seconds.
// A device hint containing "lab" shaves two seconds off the draw so lab
// cohorts report more often; the result is clamped back into range so the
// adjustment can never leave it. ValidUntil is an absolute UTC instant.
func (e *IntervalEngine) Compute(deviceHint string) models.IntervalPolicy {
	interval := minIntervalSeconds + e.intn(maxIntervalSeconds-minIntervalSeconds+1)

	if strings.Contains(deviceHint, "lab") {
		interval -= labAdjustSeconds
		if interval < minIntervalSeconds {
			interval = minIntervalSeconds
		}
		if interval > maxIntervalSeconds {
			interval = maxIntervalSeconds
		}
	}

	return models.IntervalPolicy{
		IntervalSeconds: interval,
		ValidUntil:      e.now().UTC().Add(time.Duration(interval) * time.Second),
		DeviceHint:      deviceHint,
	}
}

func (e *IntervalEngine) intn(n int) int {
	if e.rng != nil {
		return e.rng.Intn(n)
	}
	return rand.Intn(n)
}
