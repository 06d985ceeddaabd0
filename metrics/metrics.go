// Package metrics wires the anchor service's observable state into a
// dedicated Prometheus registry, adapted from zk/metrics/metrics_xlayer.go:
// every series is a field of Metrics, created and registered once by New
// and updated all together by Refresh. Unlike that file, this package uses its own
// prometheus.Registry (not the global default one) so health/server_test.go
// can stand up isolated instances without cross-test interference.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "anchor"

// Metrics holds every series the health surface's /metrics endpoint must
// expose (spec §4.E). All of them are refreshed from a stats.Snapshot
// (plus the breaker/health-state inputs it doesn't itself own) immediately
// before each scrape — see Refresh — rather than updated incrementally,
// since the statistics record is already the single source of truth for
// these values.
type Metrics struct {
	Registry *prometheus.Registry

	BatchesTotal            *prometheus.GaugeVec
	EventsTotal             prometheus.Gauge
	GasPriceSkipsTotal      prometheus.Gauge
	ConsecutiveFailures     prometheus.Gauge
	AvgAnchorTimeMs         prometheus.Gauge
	CyclesTotal             prometheus.Gauge
	L2Connected             prometheus.Gauge
	SequencerConnected      prometheus.Gauge
	L2FailuresTotal         prometheus.Gauge
	SequencerFailuresTotal  prometheus.Gauge
	SuccessRate             prometheus.Gauge
	UptimeSeconds           prometheus.Gauge
	Ready                   prometheus.Gauge
	ErrorsTotal             *prometheus.GaugeVec
	ErrorsTotalSum          prometheus.Gauge
	CircuitBreakerOpenSkips prometheus.Gauge
}

// New constructs and registers every series on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BatchesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches processed, by outcome",
		}, []string{"status"}),
		EventsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of events anchored",
		}),
		GasPriceSkipsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gas_price_skips_total",
			Help:      "Total number of cycles skipped due to the gas price ceiling",
		}),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Current consecutive anchor failure count",
		}),
		AvgAnchorTimeMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "avg_anchor_time_ms",
			Help:      "Exponential moving average of anchor latency in milliseconds",
		}),
		CyclesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total anchor cycles completed",
		}),
		L2Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l2_connected",
			Help:      "Whether the L2 RPC endpoint was reachable within the freshness window",
		}),
		SequencerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequencer_connected",
			Help:      "Whether the sequencer API was reachable within the freshness window",
		}),
		L2FailuresTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l2_connection_failures_total",
			Help:      "Total L2 connection failures",
		}),
		SequencerFailuresTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequencer_api_failures_total",
			Help:      "Total sequencer API failures",
		}),
		SuccessRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "success_rate",
			Help:      "anchored / (anchored + failed), 1.0 if no batch has been attempted",
		}),
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Service uptime in seconds",
		}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "Whether the service currently reports ready",
		}),
		ErrorsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors observed, by category",
		}, []string{"category"}),
		ErrorsTotalSum: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors_total_sum",
			Help:      "Sum of all errors across every category",
		}),
		CircuitBreakerOpenSkips: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open_skips_total",
			Help:      "Total cycles skipped because the circuit breaker denied the request",
		}),
	}

	m.Registry.MustRegister(
		m.BatchesTotal,
		m.EventsTotal,
		m.GasPriceSkipsTotal,
		m.ConsecutiveFailures,
		m.AvgAnchorTimeMs,
		m.CyclesTotal,
		m.L2Connected,
		m.SequencerConnected,
		m.L2FailuresTotal,
		m.SequencerFailuresTotal,
		m.SuccessRate,
		m.UptimeSeconds,
		m.Ready,
		m.ErrorsTotal,
		m.ErrorsTotalSum,
		m.CircuitBreakerOpenSkips,
	)

	return m
}

// ErrorCategoryCounts is the per-category error tally the health state
// tracks (the health server copies health.ErrorCounts into it field by
// field).
type ErrorCategoryCounts struct {
	Config        uint64
	L2Connection  uint64
	SequencerAPI  uint64
	Transaction   uint64
	Authorization uint64
	Internal      uint64
}

// Total sums every category.
func (c ErrorCategoryCounts) Total() uint64 {
	return c.Config + c.L2Connection + c.SequencerAPI + c.Transaction + c.Authorization + c.Internal
}

// Snapshot is everything Refresh needs to bring the registry up to date
// immediately before a scrape.
type Snapshot struct {
	TotalAnchored       uint64
	TotalFailed         uint64
	TotalEventsAnchored uint64
	GasPriceSkips       uint64
	ConsecutiveFailures uint64
	AvgAnchorTimeMs     uint64
	TotalCycles         uint64
	L2Connected         bool
	SequencerConnected  bool
	L2Failures          uint64
	SequencerFailures   uint64
	UptimeSeconds       uint64
	Ready               bool
	Errors              ErrorCategoryCounts
	BreakerOpenSkips    uint64
}

// Refresh sets every gauge from snap. Called once per scrape, matching the
// pull-model health.rs's metrics_handler uses (it reads the stats lock once
// per request rather than keeping a separately-updated metric store).
func (m *Metrics) Refresh(snap Snapshot) {
	m.BatchesTotal.WithLabelValues("success").Set(float64(snap.TotalAnchored))
	m.BatchesTotal.WithLabelValues("failed").Set(float64(snap.TotalFailed))
	m.EventsTotal.Set(float64(snap.TotalEventsAnchored))
	m.GasPriceSkipsTotal.Set(float64(snap.GasPriceSkips))
	m.ConsecutiveFailures.Set(float64(snap.ConsecutiveFailures))
	m.AvgAnchorTimeMs.Set(float64(snap.AvgAnchorTimeMs))
	m.CyclesTotal.Set(float64(snap.TotalCycles))
	m.L2Connected.Set(boolToFloat(snap.L2Connected))
	m.SequencerConnected.Set(boolToFloat(snap.SequencerConnected))
	m.L2FailuresTotal.Set(float64(snap.L2Failures))
	m.SequencerFailuresTotal.Set(float64(snap.SequencerFailures))

	total := snap.TotalAnchored + snap.TotalFailed
	successRate := 1.0
	if total > 0 {
		successRate = float64(snap.TotalAnchored) / float64(total)
	}
	m.SuccessRate.Set(successRate)

	m.UptimeSeconds.Set(float64(snap.UptimeSeconds))
	m.Ready.Set(boolToFloat(snap.Ready))

	m.ErrorsTotal.WithLabelValues("config").Set(float64(snap.Errors.Config))
	m.ErrorsTotal.WithLabelValues("l2_connection").Set(float64(snap.Errors.L2Connection))
	m.ErrorsTotal.WithLabelValues("sequencer_api").Set(float64(snap.Errors.SequencerAPI))
	m.ErrorsTotal.WithLabelValues("transaction").Set(float64(snap.Errors.Transaction))
	m.ErrorsTotal.WithLabelValues("authorization").Set(float64(snap.Errors.Authorization))
	m.ErrorsTotal.WithLabelValues("internal").Set(float64(snap.Errors.Internal))
	m.ErrorsTotalSum.Set(float64(snap.Errors.Total()))

	m.CircuitBreakerOpenSkips.Set(float64(snap.BreakerOpenSkips))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
