// Package observability — metrics.go
//
// Prometheus metrics for the lactd control core daemon.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback by default; the address comes from observability.metrics_addr.
//
// Metric naming convention: lactd_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for lactd.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Scan cycle ───────────────────────────────────────────────────────────

	// ScanDurationSeconds records the distribution of scan cycle wall time.
	ScanDurationSeconds prometheus.Histogram

	// ScanOverrunsTotal counts scan cycles that exceeded their configured
	// period.
	ScanOverrunsTotal prometheus.Counter

	// ─── Process values ───────────────────────────────────────────────────────

	// FlowRateBPH is the current instantaneous flow rate.
	FlowRateBPH prometheus.Gauge

	// BSWPercent is the current averaged BS&W reading.
	BSWPercent prometheus.Gauge

	// MeterFactor is the currently applied meter factor.
	MeterFactor prometheus.Gauge

	// CTLFactor is the currently applied correction-for-temperature factor.
	CTLFactor prometheus.Gauge

	// ─── State machine ────────────────────────────────────────────────────────

	// StateTransitionsTotal counts custody-transfer state transitions.
	// Labels: from_state, to_state
	StateTransitionsTotal *prometheus.CounterVec

	// ─── Alarms ───────────────────────────────────────────────────────────────

	// AlarmsActive is the current count of active alarms.
	AlarmsActive prometheus.Gauge

	// AlarmsUnacknowledged is the current count of unacknowledged alarms.
	AlarmsUnacknowledged prometheus.Gauge

	// ─── Pump ─────────────────────────────────────────────────────────────────

	// PumpStartsLastHour is the current rolling count of pump starts.
	PumpStartsLastHour prometheus.Gauge

	// ─── Proving ──────────────────────────────────────────────────────────────

	// ProvingRunsTotal counts completed proving sequences, by outcome
	// (pass, fail).
	ProvingRunsTotal *prometheus.CounterVec

	// ─── Storage ──────────────────────────────────────────────────────────────

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// ─── Daemon ───────────────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since the daemon started.
	UptimeSeconds prometheus.Gauge

	// startTime records when the daemon started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all lactd Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		ScanDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lactd",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Distribution of scan cycle wall-clock duration.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.2},
		}),

		ScanOverrunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lactd",
			Subsystem: "scan",
			Name:      "overruns_total",
			Help:      "Total scan cycles that exceeded their configured period.",
		}),

		FlowRateBPH: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "flow",
			Name:      "rate_bph",
			Help:      "Current instantaneous flow rate, barrels per hour.",
		}),

		BSWPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "bsw",
			Name:      "percent",
			Help:      "Current averaged Basic Sediment & Water percentage.",
		}),

		MeterFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "meter",
			Name:      "factor",
			Help:      "Currently applied meter factor.",
		}),

		CTLFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "meter",
			Name:      "ctl_factor",
			Help:      "Currently applied correction-for-temperature-on-liquid factor.",
		}),

		StateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lactd",
			Subsystem: "state",
			Name:      "transitions_total",
			Help:      "Total custody-transfer state transitions, by from_state and to_state.",
		}, []string{"from_state", "to_state"}),

		AlarmsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "alarms",
			Name:      "active",
			Help:      "Current number of active alarms.",
		}),

		AlarmsUnacknowledged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "alarms",
			Name:      "unacknowledged",
			Help:      "Current number of unacknowledged alarms.",
		}),

		PumpStartsLastHour: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "pump",
			Name:      "starts_last_hour",
			Help:      "Current rolling count of pump starts in the last hour.",
		}),

		ProvingRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lactd",
			Subsystem: "proving",
			Name:      "runs_total",
			Help:      "Total completed proving sequences, by outcome.",
		}, []string{"outcome"}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lactd",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lactd",
			Subsystem: "daemon",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the daemon started.",
		}),
	}

	reg.MustRegister(
		m.ScanDurationSeconds,
		m.ScanOverrunsTotal,
		m.FlowRateBPH,
		m.BSWPercent,
		m.MeterFactor,
		m.CTLFactor,
		m.StateTransitionsTotal,
		m.AlarmsActive,
		m.AlarmsUnacknowledged,
		m.PumpStartsLastHour,
		m.ProvingRunsTotal,
		m.StorageWriteLatency,
		m.UptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given
// address. Blocks until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the UptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
