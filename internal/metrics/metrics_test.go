package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.ObserveRun("success", 3*time.Second)
	r.ObserveRun("success", time.Second)
	r.ObserveRun("target_not_found", time.Second)
	r.ObserveAttempt("full_screen", "unchanged")
	r.ObserveAttempt("cursor_region", "changed")
	r.ObserveOracle(2*time.Second, nil)
	r.ObserveOracle(time.Second, errors.New("boom"))
	r.ObserveDiff(0.2)
	r.ObserveDiff(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("target_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attemptsTotal.WithLabelValues("cursor_region", "changed")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.oracleDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(r.diffPercent))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun("success", time.Second)
		r.ObserveAttempt("full_screen", "changed")
		r.ObserveOracle(time.Second, nil)
		r.ObserveDiff(1)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveRun("no_observed_change", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sightclick_runs_total{reason="no_observed_change"} 1`)
}
