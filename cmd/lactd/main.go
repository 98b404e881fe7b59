// Package main — cmd/lactd/main.go
//
// lactd entrypoint: the LACT unit custody-transfer control core daemon.
//
// Startup sequence:
//  1. Parse flags; load and validate config.yaml.
//  2. Initialize structured logger (zap).
//  3. Load setpoints (flat JSON, defaults on missing file).
//  4. Open BoltDB historian and prune entries past retention.
//  5. Build the alarm registry, tag store, and I/O bridge (backend
//     selected by config).
//  6. Build the scan engine and wire the historian + validator.
//  7. Start the Prometheus metrics server (loopback only).
//  8. Start the operator Unix socket server, if enabled.
//  9. Start the scan loop at the configured period.
// 10. Register a SIGHUP handler for setpoints hot-reload.
// 11. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel the root context (stops the scan loop, metrics server,
//     operator server).
//  2. The scan engine drives every output to its fail-safe value on
//     exit (pump stopped, divert to off-spec, annunciators silenced).
//  3. Close the historian.
//  4. Flush the logger.
//  5. Exit 0.
//
// On config validation failure: exit 1 immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/config"
	"github.com/scstechnologies/lactd/internal/historian"
	"github.com/scstechnologies/lactd/internal/iobridge"
	"github.com/scstechnologies/lactd/internal/iobridge/simulator"
	"github.com/scstechnologies/lactd/internal/observability"
	"github.com/scstechnologies/lactd/internal/operator"
	"github.com/scstechnologies/lactd/internal/scanengine"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
	"github.com/scstechnologies/lactd/internal/validate"
)

func init() {
	simulator.Register()
}

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	configPath := flag.String("config", "/etc/lactd/config.yaml", "Path to config.yaml")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("lactd %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	// ── Step 1: Load config ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	// ── Step 2: Initialize logger ─────────────────────────────────────────────
	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("lactd starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("unit_id", cfg.UnitID),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Step 3: Load setpoints ────────────────────────────────────────────────
	sp, err := setpoints.Load(cfg.Scan.SetpointsPath)
	if err != nil {
		log.Fatal("setpoints load failed", zap.Error(err), zap.String("path", cfg.Scan.SetpointsPath))
	}
	log.Info("setpoints loaded", zap.String("path", cfg.Scan.SetpointsPath))

	// ── Step 4: Open historian ────────────────────────────────────────────────
	hist, err := historian.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("historian open failed", zap.Error(err), zap.String("path", cfg.Storage.DBPath))
	}
	defer hist.Close() //nolint:errcheck
	log.Info("historian opened", zap.String("path", cfg.Storage.DBPath))

	cutoff := time.Now().AddDate(0, 0, -cfg.Storage.RetentionDays)
	if pruned, err := hist.PruneOlderThan(cutoff); err != nil {
		log.Warn("historian pruning failed", zap.Error(err))
	} else if pruned > 0 {
		log.Info("historian pruned", zap.Int("deleted", pruned))
	}

	validator := validate.New(log)

	// ── Step 5: Build alarm registry, tag store, I/O bridge ──────────────────
	reg := alarms.NewRegistry()
	ds := tagstore.New()

	backend, err := iobridge.NewBackend(cfg.IO.Backend, cfg.IO.Params)
	if err != nil {
		log.Fatal("io backend init failed", zap.Error(err), zap.String("backend", cfg.IO.Backend))
	}
	bridge := iobridge.New(backend, iobridge.Points, log)

	// ── Step 6: Build scan engine ──────────────────────────────────────────────
	engine := scanengine.New(ds, bridge, sp, reg, log)
	engine.SetAudit(hist, validator)

	// ── Step 7: Metrics server ────────────────────────────────────────────────
	metrics := observability.NewMetrics()
	engine.SetMetrics(metrics)
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))
	go sampleMetrics(ctx, engine, metrics)

	// ── Step 8: Operator socket server ────────────────────────────────────────
	if cfg.Operator.Enabled {
		srv := operator.NewServer(cfg.Operator.SocketPath, engine, cfg.Scan.SetpointsPath, log)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Error("operator server error", zap.Error(err))
			}
		}()
		log.Info("operator socket listening", zap.String("path", cfg.Operator.SocketPath))
	} else {
		log.Info("operator socket disabled by config")
	}

	// ── Step 9: Scan loop ──────────────────────────────────────────────────────
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		engine.Run(ctx)
	}()
	log.Info("scan loop started", zap.Int("scan_rate_ms", sp.ScanRateMS))

	// ── Step 10: SIGHUP hot-reload ─────────────────────────────────────────────
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading setpoints...")
			newSP, err := setpoints.Load(cfg.Scan.SetpointsPath)
			if err != nil {
				log.Error("setpoints hot-reload failed — retaining current setpoints", zap.Error(err))
				continue
			}
			engine.ReplaceSetpoints(newSP)
			log.Info("setpoints hot-reload successful")
		}
	}()

	// ── Step 11: Wait for shutdown signal ─────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()
	select {
	case <-shutdownTimer.C:
		log.Warn("shutdown drain timeout — forcing exit")
	case <-scanDone:
		log.Info("scan loop stopped, fail-safe outputs asserted")
	}

	log.Info("lactd shutdown complete")
}

// sampleMetrics periodically copies scan-engine status into the Prometheus
// gauges that reflect point-in-time state (flow, BS&W, alarm counts).
// Metrics tied to discrete events — scan duration, state transitions,
// pump starts, proving outcomes, storage write latency — are instead
// recorded directly from the scan cycle via Engine.SetMetrics, so a burst
// of events between ticks is never undercounted.
func sampleMetrics(ctx context.Context, engine *scanengine.Engine, metrics *observability.Metrics) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	var lastOverruns uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := engine.GetStatus()
			metrics.FlowRateBPH.Set(st.FlowRateBPH)
			metrics.BSWPercent.Set(st.BSWPct)
			metrics.MeterFactor.Set(st.MeterFactor)
			metrics.CTLFactor.Set(st.CTLFactor)
			metrics.AlarmsActive.Set(float64(st.AlarmActiveCount))
			metrics.AlarmsUnacknowledged.Set(float64(st.AlarmUnackCount))
			if st.Overruns > lastOverruns {
				metrics.ScanOverrunsTotal.Add(float64(st.Overruns - lastOverruns))
				lastOverruns = st.Overruns
			}
		}
	}
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
