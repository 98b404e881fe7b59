// Package config provides configuration loading and validation for the
// lactd control core daemon.
//
// Configuration file: /etc/lactd/config.yaml (default)
// Schema version: 1
//
// The file is read once at startup. The daemon's SIGHUP handler reloads
// the setpoints file only; changes to config.yaml take effect on restart.
//
// Validation:
//   - All required fields must be present.
//   - File paths must be non-empty; whether they are absolute is not
//     checked.
//   - Invalid config on startup: daemon refuses to start (fatal error).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the Makefile via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for lactd.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// UnitID identifies this LACT unit in the daemon's startup log.
	// Default: hostname.
	UnitID string `yaml:"unit_id"`

	// Scan configures the control scan cycle.
	Scan ScanConfig `yaml:"scan"`

	// IO selects and configures the I/O backend.
	IO IOConfig `yaml:"io"`

	// Storage configures the BoltDB historian.
	Storage StorageConfig `yaml:"storage"`

	// Observability configures metrics and logging.
	Observability ObservabilityConfig `yaml:"observability"`

	// Operator configures the operator override Unix socket.
	Operator OperatorConfig `yaml:"operator"`
}

// ScanConfig holds scan-cycle file paths and pacing.
type ScanConfig struct {
	// SetpointsPath is the flat-JSON setpoints file path.
	// Default: /etc/lactd/setpoints.json.
	SetpointsPath string `yaml:"setpoints_path"`

	// WatchdogTimeoutSec is validated to be positive; the daemon does not
	// read it and runs no scan-cycle watchdog. Default: 5.0.
	WatchdogTimeoutSec float64 `yaml:"watchdog_timeout_sec"`
}

// IOConfig selects the I/O backend and passes it free-form parameters.
type IOConfig struct {
	// Backend is the registered backend name ("simulator" or a physical
	// transport). Default: simulator.
	Backend string `yaml:"backend"`

	// Params is passed verbatim to the backend factory (e.g. a Modbus
	// TCP address, a serial device path).
	Params map[string]string `yaml:"params"`
}

// OperatorConfig holds operator override parameters.
type OperatorConfig struct {
	// SocketPath is the Unix domain socket path for the operator CLI.
	// Permissions: 0600. Default: /run/lactd/operator.sock.
	SocketPath string `yaml:"socket_path"`

	// Enabled controls whether the operator socket is active.
	// Default: true.
	Enabled bool `yaml:"enabled"`

	// MaxConcurrentConns is validated to be at least 1; the operator
	// server does not read it and always allows 4 simultaneous
	// connections. Default: 4.
	MaxConcurrentConns int `yaml:"max_concurrent_conns"`
}

// StorageConfig holds BoltDB historian parameters.
type StorageConfig struct {
	// DBPath is the absolute path to the BoltDB file.
	// Default: /var/lib/lactd/lactd.db.
	DBPath string `yaml:"db_path"`

	// RetentionDays is how long alarm/transition/proving records are kept
	// before being pruned. Default: 365 (custody-transfer records are
	// kept far longer than the teacher's 30-day security ledger).
	RetentionDays int `yaml:"retention_days"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// DefaultDBPath is the default BoltDB location, the same value as
// historian.DefaultDBPath.
const DefaultDBPath = "/var/lib/lactd/lactd.db"

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		UnitID:        hostname,
		Scan: ScanConfig{
			SetpointsPath:      "/etc/lactd/setpoints.json",
			WatchdogTimeoutSec: 5.0,
		},
		IO: IOConfig{
			Backend: "simulator",
		},
		Storage: StorageConfig{
			DBPath:        DefaultDBPath,
			RetentionDays: 365,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Operator: OperatorConfig{
			Enabled:            true,
			SocketPath:         "/run/lactd/operator.sock",
			MaxConcurrentConns: 4,
		},
	}
}

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness, accumulating every
// violation found rather than failing on the first.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.UnitID == "" {
		errs = append(errs, "unit_id must not be empty")
	}
	if cfg.Scan.SetpointsPath == "" {
		errs = append(errs, "scan.setpoints_path must not be empty")
	}
	if cfg.Scan.WatchdogTimeoutSec <= 0 {
		errs = append(errs, fmt.Sprintf("scan.watchdog_timeout_sec must be > 0, got %f", cfg.Scan.WatchdogTimeoutSec))
	}
	if cfg.IO.Backend == "" {
		errs = append(errs, "io.backend must not be empty")
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty")
	}
	if cfg.Storage.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("storage.retention_days must be >= 1, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Operator.Enabled && cfg.Operator.SocketPath == "" {
		errs = append(errs, "operator.socket_path must not be empty when operator.enabled is true")
	}
	if cfg.Operator.MaxConcurrentConns < 1 {
		errs = append(errs, fmt.Sprintf("operator.max_concurrent_conns must be >= 1, got %d", cfg.Operator.MaxConcurrentConns))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
