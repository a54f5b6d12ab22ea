package transport

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type clientMetrics struct {
	provider string

	requests metric.Int64Counter
	retries  metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func newClientMetrics(meter metric.Meter, provider string) *clientMetrics {
	cm := &clientMetrics{provider: provider}

	cm.requests, _ = meter.Int64Counter("stockdata_http_requests",
		metric.WithDescription("HTTP attempts issued to market-data providers"),
		metric.WithUnit("{request}"))

	cm.retries, _ = meter.Int64Counter("stockdata_http_retries",
		metric.WithDescription("Automatic retries after a transient provider failure"),
		metric.WithUnit("{retry}"))

	cm.failures, _ = meter.Int64Counter("stockdata_http_failures",
		metric.WithDescription("Provider calls that surfaced an error to the caller"),
		metric.WithUnit("{failure}"))

	cm.latency, _ = meter.Float64Histogram("stockdata_http_latency",
		metric.WithDescription("Latency of a single HTTP attempt"),
		metric.WithUnit("ms"))

	return cm
}

func (cm *clientMetrics) attrs(category, method string, extra ...attribute.KeyValue) metric.MeasurementOption {
	kv := append([]attribute.KeyValue{
		attribute.String("provider", cm.provider),
		attribute.String("category", category),
		attribute.String("method", method),
	}, extra...)
	return metric.WithAttributes(kv...)
}

func (cm *clientMetrics) recordAttempt(ctx context.Context, category, method string, status int, d time.Duration) {
	if cm == nil {
		return
	}
	opt := cm.attrs(category, method, attribute.String("status", strconv.Itoa(status)))
	if cm.requests != nil {
		cm.requests.Add(ctx, 1, opt)
	}
	if cm.latency != nil {
		cm.latency.Record(ctx, float64(d)/float64(time.Millisecond), opt)
	}
}

func (cm *clientMetrics) recordRetry(ctx context.Context, category, method string) {
	if cm == nil || cm.retries == nil {
		return
	}
	cm.retries.Add(ctx, 1, cm.attrs(category, method))
}

func (cm *clientMetrics) recordFailure(ctx context.Context, category, method, kind string) {
	if cm == nil || cm.failures == nil {
		return
	}
	cm.failures.Add(ctx, 1, cm.attrs(category, method, attribute.String("kind", kind)))
}
