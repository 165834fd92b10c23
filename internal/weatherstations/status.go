package weatherstations

import (
	"sync"
	"time"
)

// Station states reported by Status.State.
const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateFailed   = "failed"
)

// Status summarises recent poll outcomes.
type Status struct {
	State               string    `json:"state"`
	LastAttempt         time.Time `json:"last_attempt,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalPolls          int64     `json:"total_polls"`
	TotalFailures       int64     `json:"total_failures"`
	PrimaryTxID         int       `json:"primary_tx_id"`
	CatalogVersion      string    `json:"catalog_version"`
}

// StatusTracker keeps a Status in memory; Get returns copies.
type StatusTracker struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusTracker creates a tracker in the starting state.
func NewStatusTracker(catalogVersion string) *StatusTracker {
	return &StatusTracker{
		status: Status{State: StateStarting, CatalogVersion: catalogVersion},
	}
}

// SetPrimary records the primary transmitter chosen at setup.
func (t *StatusTracker) SetPrimary(txID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.PrimaryTxID = txID
}

// RecordSuccess marks a poll started at `at` as successful.
func (t *StatusTracker) RecordSuccess(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.State = StateHealthy
	t.status.LastAttempt = at
	t.status.LastSuccess = at
	t.status.LastError = ""
	t.status.ConsecutiveFailures = 0
	t.status.TotalPolls++
}

// RecordFailure marks a poll started at `at` as failed. A station that has
// never succeeded is failed; one with an earlier success is degraded.
func (t *StatusTracker) RecordFailure(at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.LastAttempt = at
	if err != nil {
		t.status.LastError = err.Error()
	}
	t.status.ConsecutiveFailures++
	t.status.TotalPolls++
	t.status.TotalFailures++

	if t.status.LastSuccess.IsZero() {
		t.status.State = StateFailed
	} else {
		t.status.State = StateDegraded
	}
}

// Get returns a copy of the current status.
func (t *StatusTracker) Get() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Healthy reports whether the last poll succeeded and happened within maxAge
// of now.
func (s Status) Healthy(now time.Time, maxAge time.Duration) bool {
	if s.State != StateHealthy || s.LastSuccess.IsZero() {
		return false
	}
	return now.Sub(s.LastSuccess) <= maxAge
}
