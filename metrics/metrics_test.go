package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch("ok", time.Second, 3)
		m.CandidateSkipped("stale")
		m.EmbeddingUpdated("event", nil)
		m.SetQueueDepth(4)
		m.SweepVisited("current")
		m.LexicalSearch()
		m.CacheInvalidated()
		m.ClassifierExample("add")
	})
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch("ok", 10*time.Millisecond, 3)
	m.ObserveSearch("cancelled", time.Millisecond, 0)
	m.CandidateSkipped("stale")
	m.CandidateSkipped("stale")
	m.EmbeddingUpdated("sweep", errors.New("boom"))
	m.SetQueueDepth(5)
	m.SweepVisited("refreshed")
	m.LexicalSearch()
	m.CacheInvalidated()
	m.ClassifierExample("clear")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimilaritySearchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimilaritySearchesTotal.WithLabelValues("cancelled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CandidatesSkippedTotal.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingUpdatesTotal.WithLabelValues("sweep", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.UpdateQueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepNodesTotal.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LexicalSearchesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierExamplesTotal.WithLabelValues("clear")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.LexicalSearch()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "recall_lexical_searches_total 1"), body)
}
