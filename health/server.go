package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stateset/anchor/breaker"
	"github.com/stateset/anchor/metrics"
)

const version = "0.1.0"

// Server serves the five HTTP probe/metrics endpoints over a configured
// port. It never mutates state other than reading current snapshots — all
// writes come from the anchor control loop through the shared *State handle.
type Server struct {
	state   *State
	metrics *metrics.Metrics
	breaker *breaker.CircuitBreaker
	port    int
}

// NewServer builds a health server around an existing State, metrics
// registry, and circuit breaker handle.
func NewServer(state *State, m *metrics.Metrics, b *breaker.CircuitBreaker, port int) *Server {
	return &Server{state: state, metrics: m, breaker: b, port: port}
}

// Router builds the httprouter mux for the five endpoints.
func (s *Server) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/stats", s.handleStats)
	r.GET("/errors", s.handleErrors)
	return r
}

// Addr returns the listen address for this server's configured port.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.port)
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeSec uint64 `json:"uptime_secs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   version,
		UptimeSec: uint64(s.state.Uptime(time.Now()).Seconds()),
	})
}

type readyResponse struct {
	Ready                     bool    `json:"ready"`
	L2Connected               bool    `json:"l2_connected"`
	SequencerConnected        bool    `json:"sequencer_connected"`
	LastL2CheckSecondsAgo     *uint64 `json:"last_l2_check_secs_ago,omitempty"`
	LastSeqCheckSecondsAgo    *uint64 `json:"last_sequencer_check_secs_ago,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	now := time.Now()
	l2 := s.state.l2Freshness(now)
	seq := s.state.sequencerFreshness(now)
	ready := s.state.Ready(now)

	resp := readyResponse{
		Ready:                  ready,
		L2Connected:            l2.fresh,
		SequencerConnected:     seq.fresh,
		LastL2CheckSecondsAgo:  l2.secondsAgo,
		LastSeqCheckSecondsAgo: seq.secondsAgo,
	}

	status := http.StatusServiceUnavailable
	if ready {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	now := time.Now()
	snap := s.state.stats.Snapshot()
	counts := s.state.ErrorCounts()

	s.metrics.Refresh(metrics.Snapshot{
		TotalAnchored:       snap.TotalAnchored,
		TotalFailed:         snap.TotalFailed,
		TotalEventsAnchored: snap.TotalEventsAnchored,
		GasPriceSkips:       snap.GasPriceSkips,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		AvgAnchorTimeMs:     snap.AvgAnchorTimeMs,
		TotalCycles:         snap.TotalCycles,
		L2Connected:         s.state.l2Freshness(now).fresh,
		SequencerConnected:  s.state.sequencerFreshness(now).fresh,
		L2Failures:          snap.L2ConnectionFailures,
		SequencerFailures:   snap.SequencerAPIFailures,
		UptimeSeconds:       uint64(s.state.Uptime(now).Seconds()),
		Ready:               s.state.Ready(now),
		Errors: metrics.ErrorCategoryCounts{
			Config:        counts.ConfigErrors,
			L2Connection:  counts.L2ConnectionErrors,
			SequencerAPI:  counts.SequencerAPIErrors,
			Transaction:   counts.TransactionErrors,
			Authorization: counts.AuthorizationErrors,
			Internal:      counts.InternalErrors,
		},
		BreakerOpenSkips: snap.CircuitBreakerOpenSkips,
	})

	promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

type statsResponse struct {
	TotalAnchored        uint64  `json:"total_anchored"`
	TotalFailed          uint64  `json:"total_failed"`
	TotalEventsAnchored  uint64  `json:"total_events_anchored"`
	SuccessRate          float64 `json:"success_rate"`
	LastAnchorTime       *string `json:"last_anchor_time,omitempty"`
	LastBatchID          *string `json:"last_batch_id,omitempty"`
	ConsecutiveFailures  uint64  `json:"consecutive_failures"`
	L2ConnectionFailures uint64  `json:"l2_connection_failures"`
	SequencerAPIFailures uint64  `json:"sequencer_api_failures"`
	GasPriceSkips        uint64  `json:"gas_price_skips"`
	AvgAnchorTimeMs      uint64  `json:"avg_anchor_time_ms"`
	LastL2Healthy        *string `json:"last_l2_healthy,omitempty"`
	LastSequencerHealthy *string `json:"last_sequencer_healthy,omitempty"`
	TotalCycles          uint64  `json:"total_cycles"`
	ServiceStarted       *string `json:"service_started,omitempty"`
	UptimeSec            uint64  `json:"uptime_secs"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := s.state.stats.Snapshot()

	resp := statsResponse{
		TotalAnchored:        snap.TotalAnchored,
		TotalFailed:          snap.TotalFailed,
		TotalEventsAnchored:  snap.TotalEventsAnchored,
		SuccessRate:          snap.SuccessRate(),
		LastAnchorTime:       formatTimePtr(snap.LastAnchorTime),
		ConsecutiveFailures:  snap.ConsecutiveFailures,
		L2ConnectionFailures: snap.L2ConnectionFailures,
		SequencerAPIFailures: snap.SequencerAPIFailures,
		GasPriceSkips:        snap.GasPriceSkips,
		AvgAnchorTimeMs:      snap.AvgAnchorTimeMs,
		LastL2Healthy:        formatTimePtr(snap.LastL2Healthy),
		LastSequencerHealthy: formatTimePtr(snap.LastSequencerHealthy),
		TotalCycles:          snap.TotalCycles,
		ServiceStarted:       formatTimePtr(snap.ServiceStarted),
		UptimeSec:            uint64(s.state.Uptime(time.Now()).Seconds()),
	}
	if snap.LastBatchID != nil {
		id := snap.LastBatchID.String()
		resp.LastBatchID = &id
	}

	writeJSON(w, http.StatusOK, resp)
}

type errorsResponse struct {
	Counts       ErrorCounts   `json:"counts"`
	RecentErrors []ErrorRecord `json:"recent_errors"`
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, errorsResponse{
		Counts:       s.state.ErrorCounts(),
		RecentErrors: s.state.RecentErrors(20),
	})
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
