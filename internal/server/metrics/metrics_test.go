package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ZipBuilds.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ZipBuilds))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ZipBuilds))
}

func TestLabelledCounters(t *testing.T) {
	m := New()
	m.ExtractionsFinished.WithLabelValues("succeeded").Inc()
	m.ExtractionsFinished.WithLabelValues("failed").Add(2)
	m.LockTimeouts.WithLabelValues(ScopeZip).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsFinished.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractionsFinished.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockTimeouts.WithLabelValues(ScopeZip)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LockTimeouts.WithLabelValues(ScopeDestination)))
}

func TestObservePool(t *testing.T) {
	m := New()
	m.ObservePool(7, 3)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.PoolQueueDepth))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PoolRunning))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ZipBuilds.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dirlist_zip_builds_total 1")
	assert.Contains(t, string(body), "dirlist_workerpool_queue_depth")
}
