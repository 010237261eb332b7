package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordVote(1)
	m.RecordVote(1)
	m.RecordVote(-1)
	m.RecordVote(0)
	m.RecordFork()
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordTask("prompt:view", errors.New("boom"))
	m.RecordHTTPRequest("GET", "/api/v1/prompts/{id}", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("clear")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RankCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksProcessedTotal.WithLabelValues("prompt:view", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/prompts/{id}", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordVote(1)
		m.RecordFork()
		m.RecordReport("created")
		m.RecordCacheLookup(true)
		m.RecordEnqueueFailure("prompt:copy")
		m.RecordTask("stats:recompute", nil)
		m.RecordHTTPRequest("GET", "/", 200, time.Second)
	})
}
