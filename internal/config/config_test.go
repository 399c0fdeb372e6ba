package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
monitor:
  ping_target: 8.8.8.8
  ping_interval_ms: 500
  speed_test_interval_sec: 120
  ip_lookup_interval_sec: 600
  loss_window: 10
  thresholds:
    latency_excellent_ms: 15
    latency_good_ms: 40
    latency_fair_ms: 80
    latency_poor_ms: 150
server:
  addr: 0.0.0.0:8090
`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Monitor.PingTarget != "8.8.8.8" {
		t.Fatalf("unexpected ping target: %s", cfg.Monitor.PingTarget)
	}
	if cfg.Monitor.PingInterval() != 500*time.Millisecond {
		t.Fatalf("unexpected ping interval: %s", cfg.Monitor.PingInterval())
	}
	if cfg.Monitor.LossWindow != 10 {
		t.Fatalf("unexpected loss window: %d", cfg.Monitor.LossWindow)
	}
	if cfg.Monitor.Thresholds.LatencyGoodMs != 40 {
		t.Fatalf("unexpected latency band: %+v", cfg.Monitor.Thresholds)
	}
	if cfg.Server.Addr != "0.0.0.0:8090" {
		t.Fatalf("unexpected server addr: %s", cfg.Server.Addr)
	}

	// Fields absent from the file keep their defaults.
	if cfg.Monitor.SmoothingAlpha != 0.2 {
		t.Fatalf("expected default smoothing alpha, got %v", cfg.Monitor.SmoothingAlpha)
	}
	if cfg.Monitor.HistorySize != 300 {
		t.Fatalf("expected default history size, got %d", cfg.Monitor.HistorySize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadFromEnv(ctx)
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Monitor.PingTarget != "8.8.8.8" {
		t.Fatalf("unexpected ping target: %s", cfg.Monitor.PingTarget)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MonitorConfig)
		field  string
	}{
		{
			name:   "empty target",
			mutate: func(m *MonitorConfig) { m.PingTarget = "  " },
			field:  "monitor.ping_target",
		},
		{
			name:   "non-positive ping interval",
			mutate: func(m *MonitorConfig) { m.PingIntervalMillis = 0 },
			field:  "monitor.ping_interval_ms",
		},
		{
			name:   "negative speed test interval",
			mutate: func(m *MonitorConfig) { m.SpeedTestIntervalSec = -5 },
			field:  "monitor.speed_test_interval_sec",
		},
		{
			name:   "alpha above one",
			mutate: func(m *MonitorConfig) { m.SmoothingAlpha = 1.5 },
			field:  "monitor.smoothing_alpha",
		},
		{
			name:   "zero history",
			mutate: func(m *MonitorConfig) { m.HistorySize = 0 },
			field:  "monitor.history_size",
		},
		{
			name:   "unordered latency bands",
			mutate: func(m *MonitorConfig) { m.Thresholds.LatencyGoodMs = 10 },
			field:  "monitor.thresholds",
		},
		{
			name:   "loss band above one",
			mutate: func(m *MonitorConfig) { m.Thresholds.LossPoor = 1.2 },
			field:  "monitor.thresholds",
		},
		{
			name: "governance without rate",
			mutate: func(m *MonitorConfig) {
				m.RateGovernance.Enabled = true
				m.RateGovernance.ProbesPerSecond = 0
			},
			field: "monitor.rate_governance.probes_per_second",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMonitor()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, cfgErr.Field)
			}
		})
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestDefaultProbeEndpoints(t *testing.T) {
	cfg := Default()
	if cfg.Probes.DownloadURL == "" || cfg.Probes.UploadURL == "" || cfg.Probes.IPLookupURL == "" {
		t.Fatalf("expected default probe endpoints, got %+v", cfg.Probes)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.Monitor.PingTarget = "9.9.9.9"
	cfg.Monitor.PingIntervalMillis = 2000

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Monitor.PingTarget != "9.9.9.9" || loaded.Monitor.PingIntervalMillis != 2000 {
		t.Fatalf("round-trip mismatch: %+v", loaded.Monitor)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
