package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "LINKPULSE_CONFIG"
	DefaultConfigPath = "/etc/linkpulse/config.yaml"
)

type Config struct {
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`
	Probes  ProbesConfig  `yaml:"probes" json:"probes"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// ProbesConfig names the external endpoints the throughput and address
// probes talk to.
type ProbesConfig struct {
	DownloadURL string `yaml:"download_url" json:"download_url"`
	UploadURL   string `yaml:"upload_url" json:"upload_url"`
	IPLookupURL string `yaml:"ip_lookup_url" json:"ip_lookup_url"`
}

// MonitorConfig is everything the engine needs for one monitoring run.
// It is read-only during a cycle; changes land via Engine.Reload.
type MonitorConfig struct {
	PingTarget string `yaml:"ping_target" json:"ping_target"`

	PingIntervalMillis   int `yaml:"ping_interval_ms" json:"ping_interval_ms"`
	SpeedTestIntervalSec int `yaml:"speed_test_interval_sec" json:"speed_test_interval_sec"`
	IPLookupIntervalSec  int `yaml:"ip_lookup_interval_sec" json:"ip_lookup_interval_sec"`

	// TimeoutFraction of the cadence interval is granted to each
	// probe before it is cut off and counted as a timeout.
	TimeoutFraction float64 `yaml:"timeout_fraction" json:"timeout_fraction"`

	HistorySize    int     `yaml:"history_size" json:"history_size"`
	LossWindow     int     `yaml:"loss_window" json:"loss_window"`
	SmoothingAlpha float64 `yaml:"smoothing_alpha" json:"smoothing_alpha"`

	Thresholds     QualityThresholds    `yaml:"thresholds" json:"thresholds"`
	RateGovernance RateGovernanceConfig `yaml:"rate_governance" json:"rate_governance"`
}

// QualityThresholds hold the band edges the classifier evaluates.
// Latency bands are in milliseconds, loss bands are ratios in [0,1].
// A value at or below a band edge qualifies for that band.
type QualityThresholds struct {
	LatencyExcellentMs float64 `yaml:"latency_excellent_ms" json:"latency_excellent_ms"`
	LatencyGoodMs      float64 `yaml:"latency_good_ms" json:"latency_good_ms"`
	LatencyFairMs      float64 `yaml:"latency_fair_ms" json:"latency_fair_ms"`
	LatencyPoorMs      float64 `yaml:"latency_poor_ms" json:"latency_poor_ms"`

	LossExcellent float64 `yaml:"loss_excellent" json:"loss_excellent"`
	LossGood      float64 `yaml:"loss_good" json:"loss_good"`
	LossFair      float64 `yaml:"loss_fair" json:"loss_fair"`
	LossPoor      float64 `yaml:"loss_poor" json:"loss_poor"`

	// LossCeiling caps quality at Poor or worse regardless of latency.
	LossCeiling float64 `yaml:"loss_ceiling" json:"loss_ceiling"`
}

type RateGovernanceConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	ProbesPerSecond float64 `yaml:"probes_per_second" json:"probes_per_second"`
	Burst           int     `yaml:"burst" json:"burst"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr" json:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec" json:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec" json:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec" json:"idle_timeout_sec"`
}

func (m MonitorConfig) PingInterval() time.Duration {
	return time.Duration(m.PingIntervalMillis) * time.Millisecond
}

func (m MonitorConfig) SpeedTestInterval() time.Duration {
	return time.Duration(m.SpeedTestIntervalSec) * time.Second
}

func (m MonitorConfig) IPLookupInterval() time.Duration {
	return time.Duration(m.IPLookupIntervalSec) * time.Second
}

// ProbeTimeout returns the execution-time cap for a probe scheduled at
// the given interval. Failures must surface before the next tick, so
// the cap is a fraction of the interval, floored at 100ms for very
// fast cadences.
func (m MonitorConfig) ProbeTimeout(interval time.Duration) time.Duration {
	fraction := m.TimeoutFraction
	if fraction <= 0 || fraction > 1 {
		fraction = 0.8
	}
	timeout := time.Duration(float64(interval) * fraction)
	if timeout < 100*time.Millisecond {
		timeout = 100 * time.Millisecond
	}
	return timeout
}

// ConfigError reports a structurally invalid configuration. It is the
// only error the engine surfaces from Start and Reload.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// DefaultMonitor returns the monitor defaults matching the original
// device tuning.
func DefaultMonitor() MonitorConfig {
	return MonitorConfig{
		PingTarget:           "1.1.1.1",
		PingIntervalMillis:   1000,
		SpeedTestIntervalSec: 60,
		IPLookupIntervalSec:  300,
		TimeoutFraction:      0.8,
		HistorySize:          300,
		LossWindow:           20,
		SmoothingAlpha:       0.2,
		Thresholds: QualityThresholds{
			LatencyExcellentMs: 20,
			LatencyGoodMs:      30,
			LatencyFairMs:      60,
			LatencyPoorMs:      100,
			LossExcellent:      0,
			LossGood:           0.001,
			LossFair:           0.005,
			LossPoor:           0.01,
			LossCeiling:        0.05,
		},
	}
}

func Default() Config {
	return Config{
		Monitor: DefaultMonitor(),
		Probes: ProbesConfig{
			DownloadURL: "https://speed.cloudflare.com/__down?bytes=10000000",
			UploadURL:   "https://speed.cloudflare.com/__up",
			IPLookupURL: "https://api.ipify.org",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:9610",
			ReadTimeoutSec:  5,
			WriteTimeoutSec: 10,
			IdleTimeoutSec:  60,
		},
	}
}

// Validate rejects structurally invalid configuration before any
// engine state changes.
func (m MonitorConfig) Validate() error {
	target := strings.TrimSpace(m.PingTarget)
	if target == "" {
		return &ConfigError{Field: "monitor.ping_target", Reason: "must not be empty"}
	}
	if strings.ContainsAny(target, " \t") {
		return &ConfigError{Field: "monitor.ping_target", Reason: "must not contain whitespace"}
	}
	if m.PingIntervalMillis <= 0 {
		return &ConfigError{Field: "monitor.ping_interval_ms", Reason: "must be positive"}
	}
	if m.SpeedTestIntervalSec <= 0 {
		return &ConfigError{Field: "monitor.speed_test_interval_sec", Reason: "must be positive"}
	}
	if m.IPLookupIntervalSec <= 0 {
		return &ConfigError{Field: "monitor.ip_lookup_interval_sec", Reason: "must be positive"}
	}
	if m.TimeoutFraction <= 0 || m.TimeoutFraction > 1 {
		return &ConfigError{Field: "monitor.timeout_fraction", Reason: "must be in (0, 1]"}
	}
	if m.HistorySize <= 0 {
		return &ConfigError{Field: "monitor.history_size", Reason: "must be positive"}
	}
	if m.LossWindow <= 0 {
		return &ConfigError{Field: "monitor.loss_window", Reason: "must be positive"}
	}
	if m.SmoothingAlpha <= 0 || m.SmoothingAlpha > 1 {
		return &ConfigError{Field: "monitor.smoothing_alpha", Reason: "must be in (0, 1]"}
	}
	if err := m.Thresholds.validate(); err != nil {
		return err
	}
	if m.RateGovernance.Enabled && m.RateGovernance.ProbesPerSecond <= 0 {
		return &ConfigError{Field: "monitor.rate_governance.probes_per_second", Reason: "must be positive when governance is enabled"}
	}
	return nil
}

func (t QualityThresholds) validate() error {
	latency := []float64{t.LatencyExcellentMs, t.LatencyGoodMs, t.LatencyFairMs, t.LatencyPoorMs}
	for i := 1; i < len(latency); i++ {
		if latency[i] <= latency[i-1] {
			return &ConfigError{Field: "monitor.thresholds", Reason: "latency bands must be strictly increasing"}
		}
	}
	loss := []float64{t.LossExcellent, t.LossGood, t.LossFair, t.LossPoor}
	for i, v := range loss {
		if v < 0 || v > 1 {
			return &ConfigError{Field: "monitor.thresholds", Reason: "loss bands must be ratios in [0, 1]"}
		}
		if i > 0 && loss[i] < loss[i-1] {
			return &ConfigError{Field: "monitor.thresholds", Reason: "loss bands must be non-decreasing"}
		}
	}
	if t.LossCeiling < 0 || t.LossCeiling > 1 {
		return &ConfigError{Field: "monitor.thresholds.loss_ceiling", Reason: "must be a ratio in [0, 1]"}
	}
	return nil
}

func (c Config) Validate() error {
	return c.Monitor.Validate()
}

func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}
