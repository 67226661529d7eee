package scraper

import (
	"math"
	"sync"
	"time"
)

// retireErrScore retires a session whose recent navigations keep failing.
const retireErrScore = 3.0

// Health tracks how worn a browser session is.
//
// Scoring rules:
//   - Success: errScore -= 0.5 (min 0)
//   - Failure: errScore += 1.0
//
// Retirement triggers (any one): errScore >= 3, useCount >= maxUses,
// age >= maxAge.
type Health struct {
	mu       sync.Mutex
	errScore float64
	useCount int
	created  time.Time
	maxUses  int
	maxAge   time.Duration
	now      func() time.Time
}

// NewHealth starts tracking a session created now. Non-positive limits are
// not enforced.
func NewHealth(maxUses int, maxAge time.Duration) *Health {
	return newHealthAt(maxUses, maxAge, time.Now)
}

func newHealthAt(maxUses int, maxAge time.Duration, now func() time.Time) *Health {
	return &Health{
		created: now(),
		maxUses: maxUses,
		maxAge:  maxAge,
		now:     now,
	}
}

// RecordSuccess decreases the error score (min 0).
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// RecordFailure increases the error score.
func (h *Health) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// ShouldRetire returns true if the session should be replaced before the
// next navigation.
func (h *Health) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errScore >= retireErrScore {
		return true
	}
	if h.maxUses > 0 && h.useCount >= h.maxUses {
		return true
	}
	if h.maxAge > 0 && h.now().Sub(h.created) >= h.maxAge {
		return true
	}
	return false
}

// Uses returns the number of navigations recorded so far.
func (h *Health) Uses() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.useCount
}
