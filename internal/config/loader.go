package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "/etc/hostwatch/config.yaml"

// ErrNoChannels is returned when no webhook URL is configured
var ErrNoChannels = errors.New("no notification channel configured: set at least one of webhooks.feishu, webhooks.slack, webhooks.mattermost")

// supportedSchemes mirrors the probes netcheck implements
var supportedSchemes = map[string]bool{"http": true, "https": true, "grpc": true, "gnmi": true}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), .env files and environment overrides, then
// validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	loadDotEnv(path)
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config populated with default values
func Defaults() *Config {
	return &Config{
		Thresholds: ThresholdConfig{
			CPU:    90,
			Memory: 85,
			Swap:   80,
			Disk:   90,
		},
		CheckInterval: 60 * time.Second,
		CheckCount:    3,
		DiskPath:      "/",
		Recovery: RecoveryConfig{
			Enabled:        true,
			WaitTime:       30 * time.Second,
			CommandTimeout: 60 * time.Second,
		},
		Network: NetworkConfig{
			Target:           "https://www.google.com",
			Timeout:          5 * time.Second,
			MaxRetry:         5,
			RetryInterval:    10 * time.Second,
			FailureThreshold: 1,
			CheckInterval:    60 * time.Second,
		},
		StateDir:     "/var/lib/hostwatch",
		TopProcesses: 5,
		Log: LogConfig{
			File:       "/var/log/hostwatch.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadYAML decodes a YAML file over the values already in out
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	if !cfg.Webhooks.Any() {
		return ErrNoChannels
	}

	for name, v := range map[string]float64{
		"cpu":    cfg.Thresholds.CPU,
		"memory": cfg.Thresholds.Memory,
		"swap":   cfg.Thresholds.Swap,
		"disk":   cfg.Thresholds.Disk,
	} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("thresholds.%s: must be between 0 and 100, got %v", name, v)
		}
	}

	if cfg.CheckCount < 1 {
		return fmt.Errorf("check_count: must be at least 1, got %d", cfg.CheckCount)
	}
	if cfg.CheckInterval <= 0 {
		return fmt.Errorf("check_interval: must be positive")
	}
	if cfg.TopProcesses < 0 {
		return fmt.Errorf("top_processes: must not be negative")
	}

	if cfg.Recovery.WaitTime < 0 {
		return fmt.Errorf("recovery.wait_time: must not be negative")
	}
	if cfg.Recovery.CommandTimeout <= 0 {
		return fmt.Errorf("recovery.command_timeout: must be positive")
	}
	for i, c := range cfg.Recovery.Commands {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("recovery.commands[%d]: empty command", i)
		}
	}

	n := cfg.Network
	if n.Timeout <= 0 {
		return fmt.Errorf("network.timeout: must be positive")
	}
	if n.MaxRetry < 1 {
		return fmt.Errorf("network.max_retry: must be at least 1, got %d", n.MaxRetry)
	}
	if n.RetryInterval < 0 {
		return fmt.Errorf("network.retry_interval: must not be negative")
	}
	if n.FailureThreshold < 1 {
		return fmt.Errorf("network.failure_threshold: must be at least 1, got %d", n.FailureThreshold)
	}
	if n.CheckInterval <= 0 {
		return fmt.Errorf("network.check_interval: must be positive")
	}
	u, err := url.Parse(n.Target)
	if err != nil {
		return fmt.Errorf("network.target: %w", err)
	}
	if !supportedSchemes[strings.ToLower(u.Scheme)] || u.Host == "" {
		return fmt.Errorf("network.target: %q must be an http, https, grpc or gnmi URL", n.Target)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	return nil
}
