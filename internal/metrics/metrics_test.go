package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObserveAndExpose(t *testing.T) {
	ObserveDiscoveryRun("ok")
	ObserveDiscoveryRun("degraded")
	ObservePageFetch("ok")
	ObservePageFetch("error")
	ObserveProgramsExtracted(3)
	ObserveProgramsExtracted(0)
	ObserveRuleCheck("matched")
	ObserveNotificationsCreated(2)
	ObserveHTTPRequest("GET", "/v1/sites", 200, 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "reggie_discovery_runs_total")
	require.Contains(t, rec.Body.String(), "reggie_notifications_created_total")
}
