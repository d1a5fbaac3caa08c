package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpstream(t *testing.T) {
	okBefore := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("weather-test", "ok"))
	errBefore := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("weather-test", "error"))

	ObserveUpstream("weather-test", 0.2, nil)
	ObserveUpstream("weather-test", 1.5, errors.New("status 500"))
	ObserveUpstream("weather-test", 0.3, nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("weather-test", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("weather-test", "error")))
}

func TestAuthEvent(t *testing.T) {
	before := testutil.ToFloat64(AuthEventsTotal.WithLabelValues("login-test", "error"))
	AuthEvent("login-test", errors.New("bad password"))
	assert.Equal(t, before+1, testutil.ToFloat64(AuthEventsTotal.WithLabelValues("login-test", "error")))
}
