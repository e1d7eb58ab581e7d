package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv loads .env next to the config file and in the working directory.
// Variables already in the environment are never overwritten; missing files
// are ignored.
func loadDotEnv(configPath string) {
	if configPath != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
	}
	_ = godotenv.Load()
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides cfg with the environment variables the cron scripts
// have always used.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("FEISHU_WEBHOOK_URL", &cfg.Webhooks.Feishu)
	e.str("SLACK_WEBHOOK_URL", &cfg.Webhooks.Slack)
	e.str("MATTERMOST_WEBHOOK_URL", &cfg.Webhooks.Mattermost)
	e.str("CUSTOM_HOSTNAME", &cfg.Hostname)
	e.str("LOG_FILE", &cfg.Log.File)
	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("STATE_DIR", &cfg.StateDir)
	e.str("METRICS_TEXTFILE", &cfg.MetricsTextfile)
	e.str("NETWORK_CHECK_TARGET", &cfg.Network.Target)

	e.float("CPU_THRESHOLD", &cfg.Thresholds.CPU)
	e.float("MEMORY_THRESHOLD", &cfg.Thresholds.Memory)
	e.float("SWAP_THRESHOLD", &cfg.Thresholds.Swap)
	e.float("DISK_THRESHOLD", &cfg.Thresholds.Disk)

	e.int("CHECK_COUNT", &cfg.CheckCount)
	e.int("MAX_RETRY", &cfg.Network.MaxRetry)

	e.duration("CHECK_INTERVAL", &cfg.CheckInterval)
	e.duration("RECOVERY_WAIT_TIME", &cfg.Recovery.WaitTime)
	e.duration("NETWORK_TIMEOUT", &cfg.Network.Timeout)
	e.duration("RETRY_INTERVAL", &cfg.Network.RetryInterval)

	if v, ok := lookup("RECOVERY_COMMANDS"); ok {
		cfg.Recovery.Commands = splitCommands(v)
	}

	return e.err
}

// splitCommands splits a semicolon-delimited list, dropping empty entries
func splitCommands(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ";") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// envReader applies variables until the first parse error
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = fmt.Errorf("%s: invalid number %q", key, v)
		return
	}
	*dst = f
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s: invalid integer %q", key, v)
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = d
}

// ParseDuration accepts a Go duration string or a bare number of seconds
func ParseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}
