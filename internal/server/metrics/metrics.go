// Package metrics records request and authentication metrics. The OTel
// client exports over OTLP/HTTP; NoneClient discards everything.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const DefaultPrefix = "kuzora_auth"

// Labels identify the request a measurement belongs to.
type Labels struct {
	Method   string
	Service  string
	Endpoint string
	Status   string
}

func (l Labels) attributes(withStatus bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", l.Method),
		attribute.String("service", l.Service),
		attribute.String("endpoint", l.Endpoint),
	}
	if withStatus {
		attrs = append(attrs, attribute.String("status", l.Status))
	}
	return attrs
}

type AuthStatus string

const (
	AuthSuccess AuthStatus = "success"
	AuthFailure AuthStatus = "failure"
)

type Client interface {
	IncReadyCount(ctx context.Context, l Labels)
	IncRequestCount(ctx context.Context, l Labels)
	ObserveDuration(ctx context.Context, l Labels, d time.Duration)
	ObserveAuth(ctx context.Context, status AuthStatus, l Labels)
}

var durationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type OtelClient struct {
	readyCount       metric.Int64Counter
	requestCount     metric.Int64Counter
	requestDuration  metric.Float64Histogram
	authSuccessCount metric.Int64Counter
	authFailureCount metric.Int64Counter
}

// NewOtelClient creates the instruments on meter, each named
// "<prefix>_<metric>".
func NewOtelClient(meter metric.Meter, prefix string) (*OtelClient, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	c := &OtelClient{}
	var err error

	if c.readyCount, err = meter.Int64Counter(prefix+"_ready_count",
		metric.WithDescription("Total number of readiness probes"),
	); err != nil {
		return nil, fmt.Errorf("creating ready_count counter: %w", err)
	}

	if c.requestCount, err = meter.Int64Counter(prefix+"_request_count",
		metric.WithDescription("Total number of requests"),
	); err != nil {
		return nil, fmt.Errorf("creating request_count counter: %w", err)
	}

	if c.requestDuration, err = meter.Float64Histogram(prefix+"_request_duration",
		metric.WithDescription("Time spent processing request"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("creating request_duration histogram: %w", err)
	}

	if c.authSuccessCount, err = meter.Int64Counter(prefix+"_auth_success_count",
		metric.WithDescription("Total number of successful authentication requests"),
	); err != nil {
		return nil, fmt.Errorf("creating auth_success_count counter: %w", err)
	}

	if c.authFailureCount, err = meter.Int64Counter(prefix+"_auth_failure_count",
		metric.WithDescription("Total number of failed authentication requests"),
	); err != nil {
		return nil, fmt.Errorf("creating auth_failure_count counter: %w", err)
	}

	return c, nil
}

func (c *OtelClient) IncReadyCount(ctx context.Context, l Labels) {
	c.readyCount.Add(ctx, 1, metric.WithAttributes(l.attributes(true)...))
}

func (c *OtelClient) IncRequestCount(ctx context.Context, l Labels) {
	c.requestCount.Add(ctx, 1, metric.WithAttributes(l.attributes(true)...))
}

func (c *OtelClient) ObserveDuration(ctx context.Context, l Labels, d time.Duration) {
	c.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(l.attributes(false)...))
}

func (c *OtelClient) ObserveAuth(ctx context.Context, status AuthStatus, l Labels) {
	switch status {
	case AuthSuccess:
		c.authSuccessCount.Add(ctx, 1, metric.WithAttributes(l.attributes(true)...))
	default:
		c.authFailureCount.Add(ctx, 1, metric.WithAttributes(l.attributes(true)...))
	}
}

// NoneClient is used when metrics are disabled.
type NoneClient struct{}

func (NoneClient) IncReadyCount(context.Context, Labels)                  {}
func (NoneClient) IncRequestCount(context.Context, Labels)                {}
func (NoneClient) ObserveDuration(context.Context, Labels, time.Duration) {}
func (NoneClient) ObserveAuth(context.Context, AuthStatus, Labels)        {}
