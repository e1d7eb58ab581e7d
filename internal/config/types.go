package config

import (
	"os"
	"time"

	"github.com/hostwatch/hostwatch/internal/types"
)

// Config represents the complete hostwatch configuration
type Config struct {
	Hostname        string          `yaml:"hostname"`
	Webhooks        WebhookConfig   `yaml:"webhooks"`
	Thresholds      ThresholdConfig `yaml:"thresholds"`
	CheckInterval   time.Duration   `yaml:"check_interval"`
	CheckCount      int             `yaml:"check_count"`
	DiskPath        string          `yaml:"disk_path"`
	Recovery        RecoveryConfig  `yaml:"recovery"`
	Network         NetworkConfig   `yaml:"network"`
	StateDir        string          `yaml:"state_dir"`
	MetricsTextfile string          `yaml:"metrics_textfile"`
	TopProcesses    int             `yaml:"top_processes"`
	Log             LogConfig       `yaml:"log"`
}

// WebhookConfig holds one URL per chat platform. Empty disables the platform.
type WebhookConfig struct {
	Feishu     string `yaml:"feishu"`
	Slack      string `yaml:"slack"`
	Mattermost string `yaml:"mattermost"`
}

// Any reports whether at least one webhook is set
func (w WebhookConfig) Any() bool {
	return w.Feishu != "" || w.Slack != "" || w.Mattermost != ""
}

// ThresholdConfig holds percentage thresholds per resource
type ThresholdConfig struct {
	CPU    float64 `yaml:"cpu"`
	Memory float64 `yaml:"memory"`
	Swap   float64 `yaml:"swap"`
	Disk   float64 `yaml:"disk"`
}

// Map converts the thresholds to the form the evaluator consumes
func (t ThresholdConfig) Map() types.Thresholds {
	return types.Thresholds{
		types.CPU:    t.CPU,
		types.Memory: t.Memory,
		types.Swap:   t.Swap,
		types.Disk:   t.Disk,
	}
}

// RecoveryConfig defines the remediation plan
type RecoveryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Commands       []string      `yaml:"commands"`
	WaitTime       time.Duration `yaml:"wait_time"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// NetworkConfig defines the reachability check
type NetworkConfig struct {
	Target           string        `yaml:"target"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetry         int           `yaml:"max_retry"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	CheckInterval    time.Duration `yaml:"check_interval"`
	Username         string        `yaml:"username,omitempty"` // gnmi targets only
	PasswordEnv      string        `yaml:"password_env,omitempty"`
}

// Password resolves the gNMI password from the environment
func (n NetworkConfig) Password() string {
	if n.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(n.PasswordEnv)
}

// LogConfig configures the log file and its rotation
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
