// Package observability provides Prometheus metrics for the decision
// engine and an optional HTTP endpoint serving them.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics exported by the engine.
// A nil *Metrics is valid; all recording methods become no-ops so callers
// never have to branch on whether telemetry is enabled.
type Metrics struct {
	switchesApplied  prometheus.Counter
	switchFailures   prometheus.Counter
	hintsAccepted    prometheus.Counter
	hintsStale       prometheus.Counter
	cooldownsEntered prometheus.Counter
	bestGuessFalls   prometheus.Counter
	deviceSampleRate prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all engine metrics on a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.switchesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hertzbridge_switches_applied_total",
		Help: "Total number of device format writes issued",
	})
	m.switchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hertzbridge_switch_failures_total",
		Help: "Total number of device format writes rejected by hardware",
	})
	m.hintsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hertzbridge_hints_accepted_total",
		Help: "Total number of log hints accepted into the candidate rate",
	})
	m.hintsStale = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hertzbridge_hints_stale_total",
		Help: "Total number of log hints discarded as stale",
	})
	m.cooldownsEntered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hertzbridge_cooldowns_entered_total",
		Help: "Total number of termination cooldowns entered",
	})
	m.bestGuessFalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hertzbridge_best_guess_fallbacks_total",
		Help: "Total number of stability waits resolved by the attempt ceiling",
	})
	m.deviceSampleRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hertzbridge_device_sample_rate_hz",
		Help: "Sample rate last applied to the output device",
	})

	collectors := []prometheus.Collector{
		m.switchesApplied,
		m.switchFailures,
		m.hintsAccepted,
		m.hintsStale,
		m.cooldownsEntered,
		m.bestGuessFalls,
		m.deviceSampleRate,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register engine metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) IncSwitchApplied() {
	if m != nil {
		m.switchesApplied.Inc()
	}
}

func (m *Metrics) IncSwitchFailure() {
	if m != nil {
		m.switchFailures.Inc()
	}
}

func (m *Metrics) IncHintAccepted() {
	if m != nil {
		m.hintsAccepted.Inc()
	}
}

func (m *Metrics) IncHintStale() {
	if m != nil {
		m.hintsStale.Inc()
	}
}

func (m *Metrics) IncCooldownEntered() {
	if m != nil {
		m.cooldownsEntered.Inc()
	}
}

func (m *Metrics) IncBestGuessFallback() {
	if m != nil {
		m.bestGuessFalls.Inc()
	}
}

func (m *Metrics) SetDeviceSampleRate(rate float64) {
	if m != nil {
		m.deviceSampleRate.Set(rate)
	}
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the telemetry endpoint until the context is canceled.
func (m *Metrics) Serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
