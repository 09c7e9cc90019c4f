package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCountersAreExposed(t *testing.T) {
	ObserveHTTP("get", "/api/rpc/:proc", http.StatusOK, 20*time.Millisecond)
	RecordCheckoutSession("created")
	RecordWebhookEvent("", "ignored")
	RecordJobRun("refresh_tokens", true)
	RecordProcedureError("auth.signIn", "UNAUTHORIZED")

	body := scrape(t)
	assert.Contains(t, body, `storefront_http_requests_total{method="GET",path="/api/rpc/:proc",status="200"} 1`)
	assert.Contains(t, body, `storefront_checkout_sessions_total{outcome="created"} 1`)
	assert.Contains(t, body, `storefront_webhook_events_total{result="ignored",type="unknown"} 1`)
	assert.Contains(t, body, `storefront_jobs_runs_total{job="refresh_tokens",success="true"} 1`)
	assert.Contains(t, body, `storefront_rpc_errors_total{code="UNAUTHORIZED",procedure="auth.signIn"} 1`)
}

func TestInFlight(t *testing.T) {
	done := InFlight()
	assert.Contains(t, scrape(t), "storefront_http_inflight_requests 1")
	done()
	assert.Contains(t, scrape(t), "storefront_http_inflight_requests 0")
}
