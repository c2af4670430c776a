package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"

	giftGranted         = "granted"
	giftSkippedPowered  = "skipped_powered"
	giftSkippedCampaign = "skipped_campaign"
)

// Metrics captures engine health signals.
type Metrics struct {
	contributions *prometheus.CounterVec
	levelUps      *prometheus.CounterVec
	gifts         *prometheus.CounterVec
	voids         prometheus.Counter
	resets        prometheus.Counter
	recoveries    prometheus.Counter
	drift         prometheus.Counter
	persistErrors prometheus.Counter
	guardWait     prometheus.Histogram
}

// NewMetrics creates and registers engine metrics. A nil registerer uses
// prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolution_contributions_total",
			Help: "Contribution recording attempts by result.",
		}, []string{"result"}),
		levelUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolution_level_ups_total",
			Help: "Committed level-ups by whether the threshold was hit exactly.",
		}, []string{"exact_hit"}),
		gifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolution_gifts_total",
			Help: "Idle gift requests by outcome.",
		}, []string{"outcome"}),
		voids: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evolution_voids_total",
			Help: "Contributions voided.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evolution_resets_total",
			Help: "Entity resets.",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evolution_snapshot_recoveries_total",
			Help: "Snapshots caught up from the event log on load.",
		}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evolution_rebuild_drift_total",
			Help: "Rebuilds whose result differed from the stored snapshot.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evolution_snapshot_persist_errors_total",
			Help: "Snapshot writes that failed after their events were appended.",
		}),
		guardWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evolution_guard_wait_seconds",
			Help:    "Time spent waiting for the concurrency guard.",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	registerer.MustRegister(
		m.contributions,
		m.levelUps,
		m.gifts,
		m.voids,
		m.resets,
		m.recoveries,
		m.drift,
		m.persistErrors,
		m.guardWait,
	)
	return m
}

// The methods below tolerate a nil receiver so an engine without metrics
// needs no checks at call sites.

func (m *Metrics) contribution(result string) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(result).Inc()
}

func (m *Metrics) levelUp(exact bool) {
	if m == nil {
		return
	}
	label := "false"
	if exact {
		label = "true"
	}
	m.levelUps.WithLabelValues(label).Inc()
}

func (m *Metrics) gift(outcome string) {
	if m == nil {
		return
	}
	m.gifts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) void() {
	if m == nil {
		return
	}
	m.voids.Inc()
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

func (m *Metrics) recovery() {
	if m == nil {
		return
	}
	m.recoveries.Inc()
}

func (m *Metrics) rebuildDrift() {
	if m == nil {
		return
	}
	m.drift.Inc()
}

func (m *Metrics) persistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

func (m *Metrics) observeGuardWait(d time.Duration) {
	if m == nil {
		return
	}
	m.guardWait.Observe(d.Seconds())
}
