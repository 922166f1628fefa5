package main

import (
	"expvar"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pantry/internal/config"
	"pantry/internal/core"
)

const expvarName = "pantry"

// newMetrics builds the recorder and /metrics handler for the configured
// exporter. Both are nil for "none".
func newMetrics(cfg config.MetricsConfig) (core.MetricsRecorder, http.Handler, error) {
	switch cfg.Exporter {
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		return rec, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
	case config.MetricsExpvar:
		rec, err := core.NewExpvarMetricsRecorder(expvarName)
		if err != nil {
			return nil, nil, fmt.Errorf("publish metrics: %w", err)
		}
		return rec, expvar.Handler(), nil
	case config.MetricsNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown metrics exporter %q", cfg.Exporter)
	}
}
