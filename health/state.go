// Package health implements the HTTP probe/metrics surface (spec §4.E),
// grounded on original_source/anchor/src/health.rs: the same five
// endpoints, the same freshness-window readiness rule, and the same
// bounded recent-error ring. Routing uses httprouter, matching the
// lightweight router the teacher's own cmd/rpcdaemon uses.
package health

import (
	"sync"
	"time"

	"github.com/stateset/anchor/errs"
	"github.com/stateset/anchor/stats"
)

// freshnessWindow is how recent a health check must be to count as "fresh"
// for readiness purposes (spec §3 HealthView).
const freshnessWindow = 60 * time.Second

const maxRecentErrors = 100

// ErrorRecord is one entry in the bounded recent-error ring.
type ErrorRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	ErrorCode   string    `json:"error_code"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	IsRetryable bool      `json:"is_retryable"`
}

// ErrorCounts is the per-category error tally exposed by /errors and fed
// into the /metrics surface.
type ErrorCounts struct {
	ConfigErrors        uint64  `json:"config_errors"`
	L2ConnectionErrors  uint64  `json:"l2_connection_errors"`
	SequencerAPIErrors  uint64  `json:"sequencer_api_errors"`
	TransactionErrors   uint64  `json:"transaction_errors"`
	AuthorizationErrors uint64  `json:"authorization_errors"`
	InternalErrors      uint64  `json:"internal_errors"`
	LastErrorTime       *string `json:"last_error_time,omitempty"`
	LastErrorMessage    *string `json:"last_error_message,omitempty"`
	LastErrorCode       *string `json:"last_error_code,omitempty"`
}

// State is the shared handle the control loop and the HTTP surface both
// hold (design note "Cyclic ownership between surface and loop"): neither
// task owns the other, both receive it by reference at construction.
type State struct {
	startTime time.Time
	stats     *stats.Stats

	mu                 sync.RWMutex
	lastL2Check        *time.Time
	lastSequencerCheck *time.Time
	isReady            bool
	errorCounts        ErrorCounts
	recentErrors       []ErrorRecord
}

// NewState constructs health surface state around an existing stats record.
func NewState(s *stats.Stats) *State {
	return &State{
		startTime: time.Now(),
		stats:     s,
	}
}

// SetReady updates the operator-visible readiness flag.
func (h *State) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isReady = ready
}

// MarkL2Healthy stamps the last-L2-check timestamp.
func (h *State) MarkL2Healthy() {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastL2Check = &now
}

// MarkSequencerHealthy stamps the last-sequencer-check timestamp.
func (h *State) MarkSequencerHealthy() {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSequencerCheck = &now
}

// RecordError updates both the per-category counts and the bounded recent
// error ring, evicting the oldest entry once the ring reaches
// maxRecentErrors.
func (h *State) RecordError(err error) {
	now := time.Now()
	code := errs.CodeOf(err)
	severity := errs.SeverityOf(err)
	message := err.Error()
	retryable := errs.IsRetryable(err)
	ts := now.UTC().Format(time.RFC3339)

	h.mu.Lock()
	defer h.mu.Unlock()

	switch code {
	case string(errs.CategoryConfig):
		h.errorCounts.ConfigErrors++
	case string(errs.CategoryL2Connection):
		h.errorCounts.L2ConnectionErrors++
	case string(errs.CategorySequencerAPI):
		h.errorCounts.SequencerAPIErrors++
	case string(errs.CategoryTransaction):
		h.errorCounts.TransactionErrors++
	case string(errs.CategoryAuthorization):
		h.errorCounts.AuthorizationErrors++
	default:
		h.errorCounts.InternalErrors++
	}
	h.errorCounts.LastErrorTime = &ts
	h.errorCounts.LastErrorMessage = &message
	h.errorCounts.LastErrorCode = &code

	if len(h.recentErrors) >= maxRecentErrors {
		h.recentErrors = h.recentErrors[1:]
	}
	h.recentErrors = append(h.recentErrors, ErrorRecord{
		Timestamp:   now,
		ErrorCode:   code,
		Message:     message,
		Severity:    severity.String(),
		IsRetryable: retryable,
	})
}

// ErrorCounts returns a copy of the current per-category counts.
func (h *State) ErrorCounts() ErrorCounts {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.errorCounts
}

// RecentErrors returns up to limit of the most recent error records, most
// recent last.
func (h *State) RecentErrors(limit int) []ErrorRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.recentErrors) <= limit {
		out := make([]ErrorRecord, len(h.recentErrors))
		copy(out, h.recentErrors)
		return out
	}
	start := len(h.recentErrors) - limit
	out := make([]ErrorRecord, limit)
	copy(out, h.recentErrors[start:])
	return out
}

// ClearErrors resets error counts and the recent-error ring. Used by tests
// and operator-triggered resets.
func (h *State) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorCounts = ErrorCounts{}
	h.recentErrors = nil
}

// freshness describes how recently a component was last observed healthy.
type freshness struct {
	fresh       bool
	secondsAgo  *uint64
}

func (h *State) l2Freshness(now time.Time) freshness {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return freshnessOf(h.lastL2Check, now)
}

func (h *State) sequencerFreshness(now time.Time) freshness {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return freshnessOf(h.lastSequencerCheck, now)
}

func freshnessOf(last *time.Time, now time.Time) freshness {
	if last == nil {
		return freshness{fresh: false}
	}
	elapsed := now.Sub(*last)
	secs := uint64(elapsed.Seconds())
	return freshness{fresh: elapsed < freshnessWindow, secondsAgo: &secs}
}

// Ready reports the derived HealthView readiness per spec §3: the
// operator-set ready flag AND both L2 and sequencer freshness (see
// DESIGN.md Open Question 1 for why both are required).
func (h *State) Ready(now time.Time) bool {
	h.mu.RLock()
	isReady := h.isReady
	h.mu.RUnlock()

	return isReady && h.l2Freshness(now).fresh && h.sequencerFreshness(now).fresh
}

// Uptime returns time elapsed since the health state was constructed.
func (h *State) Uptime(now time.Time) time.Duration {
	return now.Sub(h.startTime)
}
