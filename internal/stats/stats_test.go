package stats

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/metrics"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /metrics to be set")
	assert.Equal(t, "GET /metrics", pattern, "expected handler to be registered for GET method on /metrics")
}

func TestStatsUpdaterIncrDecr(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("NumActiveClients")
	su.RegisterMetric("NumActiveClients")
	su.Run()
	defer su.Stop()

	su.Incr("NumActiveClients")
	su.Incr("NumActiveClients")
	su.Decr("NumActiveClients")

	gauge := su.gauges["NumActiveClients"]
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(gauge) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric("NumMessagesSent")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "roamchat_num_messages_sent"), "expected registered gauge in output")
	assert.True(t, strings.Contains(body, "roamchat_uptime_seconds"), "expected uptime gauge in output")
}

func TestInstrumentHandler(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	h := su.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(su.requests.WithLabelValues("418", "get")))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "num_active_clients", snakeCase("NumActiveClients"))
	assert.Equal(t, "messages", snakeCase("messages"))
}
