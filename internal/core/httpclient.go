package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"aichat.dev/chat-gateway/internal/metrics"
)

type upstreamStartedAt struct{}

// newUpstreamClient returns a resty client that logs every response under the
// given upstream name. Retries are disabled.
func newUpstreamClient(upstream string, timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), upstreamStartedAt{}, time.Now()))
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		start, _ := r.Request.Context().Value(upstreamStartedAt{}).(time.Time)
		log.Debug().
			Str("upstream", upstream).
			Int("status", r.StatusCode()).
			Str("method", r.Request.Method).
			Dur("latency", time.Since(start)).
			Msg("Upstream request")
		return nil
	})
	return client
}

// observe records the outcome of one upstream call started at start.
func observe(upstream string, start time.Time, err error) {
	metrics.ObserveUpstream(upstream, time.Since(start).Seconds(), err)
}
