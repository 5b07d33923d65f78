package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestAuditCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(auditRunsTotal.WithLabelValues("completed"))
	ObserveRun("completed")
	require.InDelta(t, before+1, testutil.ToFloat64(auditRunsTotal.WithLabelValues("completed")), 0.001)

	fallbacks := testutil.ToFloat64(auditPerformanceFallbacks)
	ObservePerformanceFallback()
	require.InDelta(t, fallbacks+1, testutil.ToFloat64(auditPerformanceFallbacks), 0.001)

	failures := testutil.ToFloat64(auditStageFailuresTotal.WithLabelValues("collect"))
	ObserveStageFailure("collect")
	require.InDelta(t, failures+1, testutil.ToFloat64(auditStageFailuresTotal.WithLabelValues("collect")), 0.001)

	secondary := testutil.ToFloat64(auditSecondaryFailures.WithLabelValues("alert"))
	ObserveSecondaryFailure("alert")
	require.InDelta(t, secondary+1, testutil.ToFloat64(auditSecondaryFailures.WithLabelValues("alert")), 0.001)

	ObserveStage("render", 2*time.Second)
	require.Positive(t, testutil.CollectAndCount(auditStageDurationSeconds))

	inFlight := testutil.ToFloat64(auditInFlight)
	IncInFlight()
	require.InDelta(t, inFlight+1, testutil.ToFloat64(auditInFlight), 0.001)
	DecInFlight()
	require.InDelta(t, inFlight, testutil.ToFloat64(auditInFlight), 0.001)
}

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/api/audit", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "200"))
	teapotBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/audit", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.InDelta(t, okBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "200")), 0.001)
	require.InDelta(t, teapotBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")), 0.001)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
