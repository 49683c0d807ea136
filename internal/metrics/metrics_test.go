package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOf(t *testing.T) {
	assert.Equal(t, ResultOK, ResultOf(nil))
	assert.Equal(t, ResultError, ResultOf(errors.New("boom")))
}

func TestIngestCounter(t *testing.T) {
	c := IngestMessages.WithLabelValues("report", ResultInvalid)
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestHandlerServesRegistry(t *testing.T) {
	BreakerState.WithLabelValues("metrics-test").Set(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trashcan_storage_breaker_open{name="metrics-test"} 1`)
}
