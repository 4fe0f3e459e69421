// Package metrics defines the Prometheus collectors used by recall and
// exposes an HTTP handler for scraping.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can take metrics as an optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recall"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	SimilaritySearchesTotal *prometheus.CounterVec
	SimilaritySearchLatency prometheus.Histogram
	SimilarityResultsCount  prometheus.Histogram
	CandidatesSkippedTotal  *prometheus.CounterVec
	EmbeddingUpdatesTotal   *prometheus.CounterVec
	UpdateQueueDepth        prometheus.Gauge
	SweepNodesTotal         *prometheus.CounterVec
	LexicalSearchesTotal    prometheus.Counter
	CacheInvalidationsTotal prometheus.Counter
	ClassifierExamplesTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SimilaritySearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "similarity_searches_total",
				Help:      "Total similarity searches by result (ok, cancelled, error).",
			},
			[]string{"result"},
		),
		SimilaritySearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "similarity_search_latency_seconds",
				Help:      "Similarity search latency in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		SimilarityResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "similarity_results_count",
				Help:      "Number of results returned per similarity search.",
				Buckets:   []float64{0, 1, 5, 10, 20, 32},
			},
		),
		CandidatesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "similarity_candidates_skipped_total",
				Help:      "Nodes skipped during similarity search by reason (excluded, missing, stale).",
			},
			[]string{"reason"},
		),
		EmbeddingUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_updates_total",
				Help:      "Embedding recomputations by trigger (event, sweep, direct) and status.",
			},
			[]string{"trigger", "status"},
		),
		UpdateQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "embedding_update_queue_depth",
				Help:      "Node change events waiting for the embedding updater.",
			},
		),
		SweepNodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_nodes_total",
				Help:      "Nodes visited by the integrity sweep by outcome (current, refreshed, failed).",
			},
			[]string{"outcome"},
		),
		LexicalSearchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lexical_searches_total",
				Help:      "Total lexical searches.",
			},
		),
		CacheInvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Cache stores wiped because their signature changed.",
			},
		),
		ClassifierExamplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_examples_total",
				Help:      "Classifier example changes by operation (add, clear).",
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.SimilaritySearchesTotal,
		m.SimilaritySearchLatency,
		m.SimilarityResultsCount,
		m.CandidatesSkippedTotal,
		m.EmbeddingUpdatesTotal,
		m.UpdateQueueDepth,
		m.SweepNodesTotal,
		m.LexicalSearchesTotal,
		m.CacheInvalidationsTotal,
		m.ClassifierExamplesTotal,
	)

	return m
}

// ObserveSearch records a finished similarity search.
func (m *Metrics) ObserveSearch(result string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.SimilaritySearchesTotal.WithLabelValues(result).Inc()
	m.SimilaritySearchLatency.Observe(elapsed.Seconds())
	if result == "ok" {
		m.SimilarityResultsCount.Observe(float64(results))
	}
}

// CandidateSkipped counts a node left out of a similarity search.
func (m *Metrics) CandidateSkipped(reason string) {
	if m == nil {
		return
	}
	m.CandidatesSkippedTotal.WithLabelValues(reason).Inc()
}

// EmbeddingUpdated counts an embedding recomputation.
func (m *Metrics) EmbeddingUpdated(trigger string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EmbeddingUpdatesTotal.WithLabelValues(trigger, status).Inc()
}

// SetQueueDepth reports the number of pending update events.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.UpdateQueueDepth.Set(float64(n))
}

// SweepVisited counts a node handled by the integrity sweep.
func (m *Metrics) SweepVisited(outcome string) {
	if m == nil {
		return
	}
	m.SweepNodesTotal.WithLabelValues(outcome).Inc()
}

// LexicalSearch counts a lexical search.
func (m *Metrics) LexicalSearch() {
	if m == nil {
		return
	}
	m.LexicalSearchesTotal.Inc()
}

// CacheInvalidated counts a cache wipe.
func (m *Metrics) CacheInvalidated() {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.Inc()
}

// ClassifierExample counts a classifier example change.
func (m *Metrics) ClassifierExample(op string) {
	if m == nil {
		return
	}
	m.ClassifierExamplesTotal.WithLabelValues(op).Inc()
}

// Handler returns the Prometheus scrape HTTP handler for g.
// A nil g serves the default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
