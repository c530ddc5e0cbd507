package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestObserveHelpersCountAfterInit(t *testing.T) {
	Init(nil, zap.NewNop())

	before := testutil.ToFloat64(reloadTotal.WithLabelValues("historico", resultError))
	IncReloadFile("historico", ResultError)
	assert.Equal(t, before+1, testutil.ToFloat64(reloadTotal.WithLabelValues("historico", resultError)))

	ObserveReload(ResultSuccess, 10*time.Millisecond, 365, 4)
	assert.Equal(t, 365.0, testutil.ToFloat64(loadedRecords))
	assert.Equal(t, 4.0, testutil.ToFloat64(openTickets))

	before = testutil.ToFloat64(seriesPointsTotal)
	AddSeriesPoints(288)
	AddSeriesPoints(0)
	assert.Equal(t, before+288, testutil.ToFloat64(seriesPointsTotal))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("GET", "4xx"))
	IncHTTPRequest("GET", 404)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "4xx")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "3xx", statusLabel(304))
	assert.Equal(t, "4xx", statusLabel(400))
	assert.Equal(t, "5xx", statusLabel(503))
}
