// Package metrics exposes batch counters on a dedicated Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/use-agent/postpulse/models"
)

// Metrics bundles Prometheus collectors for a batch run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry           *prometheus.Registry
	ItemsTotal         *prometheus.CounterVec
	NavigationAttempts prometheus.Counter
	RetriesTotal       prometheus.Counter
	StrategyHits       *prometheus.CounterVec
	CheckpointsTotal   prometheus.Counter
	CacheHitsTotal     prometheus.Counter
	SessionsTotal      *prometheus.CounterVec
	NavigationDuration prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpulse_items_total",
			Help: "Processed targets by extraction status.",
		},
		[]string{"status"},
	)
	attempts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "postpulse_navigation_attempts_total",
			Help: "Total page navigations attempted.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "postpulse_retries_total",
			Help: "Total navigation retries scheduled.",
		},
	)
	hits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpulse_strategy_hits_total",
			Help: "Fields resolved, by field and winning strategy.",
		},
		[]string{"field", "strategy"},
	)
	checkpoints := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "postpulse_checkpoints_total",
			Help: "Total progress checkpoints written.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "postpulse_cache_hits_total",
			Help: "Targets served from the record cache.",
		},
	)
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpulse_sessions_total",
			Help: "Browser sessions by lifecycle event.",
		},
		[]string{"event"},
	)
	navDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "postpulse_navigation_duration_seconds",
			Help:    "Time from navigation start to snapshot.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	registry.MustRegister(items, attempts, retries, hits, checkpoints, cacheHits, sessions, navDuration)

	return &Metrics{
		Registry:           registry,
		ItemsTotal:         items,
		NavigationAttempts: attempts,
		RetriesTotal:       retries,
		StrategyHits:       hits,
		CheckpointsTotal:   checkpoints,
		CacheHitsTotal:     cacheHits,
		SessionsTotal:      sessions,
		NavigationDuration: navDuration,
	}
}

// IncItem counts one processed target.
func (m *Metrics) IncItem(status string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(status).Inc()
}

// IncAttempt counts one navigation attempt.
func (m *Metrics) IncAttempt() {
	if m == nil {
		return
	}
	m.NavigationAttempts.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveSources counts the winning strategy of every resolved field.
func (m *Metrics) ObserveSources(sources map[models.Field]string) {
	if m == nil {
		return
	}
	for field, strategy := range sources {
		m.StrategyHits.WithLabelValues(string(field), strategy).Inc()
	}
}

// IncCheckpoint counts one persisted checkpoint.
func (m *Metrics) IncCheckpoint() {
	if m == nil {
		return
	}
	m.CheckpointsTotal.Inc()
}

// IncCacheHit counts one target served from the cache.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncSession counts a session lifecycle event ("created", "retired",
// "crashed", "create_failed").
func (m *Metrics) IncSession(event string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(event).Inc()
}

// ObserveNavigation records how long one navigation took.
func (m *Metrics) ObserveNavigation(d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationDuration.Observe(d.Seconds())
}
