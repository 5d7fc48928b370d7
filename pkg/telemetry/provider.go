// Package telemetry wires the otel metrics API to a Prometheus scrape
// endpoint, so pkg/pipeline.Metrics has a real MeterProvider to report
// through instead of the no-op default.
//
// Grounded on MrWong99-glyphoxa's internal/observe.InitProvider: a
// sdkmetric.MeterProvider backed by the Prometheus exporter bridge,
// trimmed to metrics only since nothing in this module emits spans.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider bundles a metrics pipeline with the HTTP server exposing it.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	srv           *http.Server
}

// NewProvider builds a Prometheus-backed MeterProvider and starts an HTTP
// server on addr serving /metrics. Call Shutdown to release both.
func NewProvider(addr string) (*Provider, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()

	return &Provider{meterProvider: mp, srv: srv}, nil
}

// Meter returns a named meter from the underlying MeterProvider, ready to
// pass to pipeline.NewMetrics.
func (p *Provider) Meter(name string) metric.Meter {
	return p.meterProvider.Meter(name)
}

// Shutdown flushes the meter provider and stops the HTTP server.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.srv.Shutdown(ctx)
}
