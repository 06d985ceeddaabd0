// Package stats implements the process-wide statistics record the control
// loop mutates under exclusive write and the health surface reads under
// shared read.
package stats

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// FailureCategory buckets a failed anchor attempt for the per-category
// counters the health surface exposes.
type FailureCategory int

const (
	L2Connection FailureCategory = iota
	SequencerAPI
	Transaction
	Other
)

// Snapshot is an immutable copy of the statistics record, safe to read
// without holding any lock.
type Snapshot struct {
	TotalAnchored           uint64
	TotalFailed             uint64
	TotalEventsAnchored     uint64
	LastAnchorTime          *time.Time
	LastBatchID             *uuid.UUID
	ConsecutiveFailures     uint64
	L2ConnectionFailures    uint64
	SequencerAPIFailures    uint64
	TransactionFailures     uint64
	OtherFailures           uint64
	GasPriceSkips           uint64
	AvgAnchorTimeMs         uint64
	LastL2Healthy           *time.Time
	LastSequencerHealthy    *time.Time
	ServiceStarted          *time.Time
	TotalCycles             uint64
	CircuitBreakerState     string
	CircuitBreakerOpenSkips uint64
}

// SuccessRate returns TotalAnchored/(TotalAnchored+TotalFailed), or 1.0 when
// no batch has been attempted yet.
func (s Snapshot) SuccessRate() float64 {
	total := s.TotalAnchored + s.TotalFailed
	if total == 0 {
		return 1.0
	}
	return float64(s.TotalAnchored) / float64(total)
}

// Stats is the concurrent-safe aggregate described in spec §3/§4.C. The
// control loop is its sole writer; the health surface only reads snapshots.
type Stats struct {
	mu sync.RWMutex
	s  Snapshot
}

// New constructs an empty statistics record.
func New() *Stats {
	return &Stats{}
}

// SeedServiceStarted sets the service start time if it has not been set yet.
func (st *Stats) SeedServiceStarted(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.ServiceStarted == nil {
		st.s.ServiceStarted = &now
	}
}

// RecordSuccess folds one more successful anchor into the record: it
// increments the anchored/events counters, resets consecutive failures to
// zero, stamps the last-anchor time and batch id, and folds latencyMs into
// the rolling average. The first sample is taken as-is; every subsequent
// sample is combined as (avg*9 + sample) / 10, an EMA biased toward recent
// behavior.
func (st *Stats) RecordSuccess(batchID uuid.UUID, eventCount uint32, latencyMs uint64, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.TotalAnchored++
	st.s.TotalEventsAnchored += uint64(eventCount)
	st.s.ConsecutiveFailures = 0
	st.s.LastAnchorTime = &now
	id := batchID
	st.s.LastBatchID = &id

	if st.s.TotalAnchored == 1 {
		st.s.AvgAnchorTimeMs = latencyMs
	} else {
		st.s.AvgAnchorTimeMs = (st.s.AvgAnchorTimeMs*9 + latencyMs) / 10
	}
}

// RecordFailure increments total failures, consecutive failures, and the
// per-category counter. It returns the new consecutive-failure count so the
// caller can hand it to the circuit breaker (see DESIGN.md Open Question 2).
func (st *Stats) RecordFailure(category FailureCategory) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.TotalFailed++
	st.s.ConsecutiveFailures++

	switch category {
	case L2Connection:
		st.s.L2ConnectionFailures++
	case SequencerAPI:
		st.s.SequencerAPIFailures++
	case Transaction:
		st.s.TransactionFailures++
	default:
		st.s.OtherFailures++
	}

	return st.s.ConsecutiveFailures
}

// RecordSequencerAPIFailureOnly bumps only the sequencer-API category
// counter, without touching total_failed or consecutive_failures. This is
// for a notify-anchored failure after a successful on-chain commit (spec
// §7): the anchor already succeeded, so it must not be double-counted as a
// batch failure or poison the breaker's consecutive-failure count.
func (st *Stats) RecordSequencerAPIFailureOnly() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.SequencerAPIFailures++
}

// RecordGasSkip increments the gas-price-skip counter.
func (st *Stats) RecordGasSkip() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.GasPriceSkips++
}

// MarkL2Healthy stamps the last-L2-healthy timestamp.
func (st *Stats) MarkL2Healthy(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.LastL2Healthy = &now
}

// MarkSequencerHealthy stamps the last-sequencer-healthy timestamp.
func (st *Stats) MarkSequencerHealthy(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.LastSequencerHealthy = &now
}

// IncCycles increments the total-cycles counter.
func (st *Stats) IncCycles() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TotalCycles++
}

// IncBreakerOpenSkips increments the cycles-skipped-due-to-open-breaker
// counter.
func (st *Stats) IncBreakerOpenSkips() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.CircuitBreakerOpenSkips++
}

// SetCircuitBreakerState records the breaker's current state label
// ("closed", "open", "half_open") for the stats/metrics surface.
func (st *Stats) SetCircuitBreakerState(state string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.CircuitBreakerState = state
}

// Snapshot copies the current record out under a shared read lock.
func (st *Stats) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}
