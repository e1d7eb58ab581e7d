package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hostwatch/hostwatch/internal/collector"
	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/logging"
	"github.com/hostwatch/hostwatch/internal/notifier"
	"github.com/hostwatch/hostwatch/internal/state"
	"github.com/rs/zerolog"
)

// app holds what every pipeline needs for one invocation
type app struct {
	cfg        *config.Config
	configFile string
	hostname   string
	dryRun     bool

	logs     *logging.Setup
	logger   zerolog.Logger
	capture  *logging.Buffer
	store    *state.Store
	notifier *notifier.Notifier
}

// resolveConfigPath returns the file to load: the flag if given, else the
// default path when it exists, else none.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.DefaultPath
	}
	return ""
}

// loadConfig loads the configuration and applies command line overrides
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
}

// newApp loads the config and wires the app. capture, when set, receives a
// copy of the log stream; dry runs always capture warnings for the report.
func newApp(ctx context.Context, dryRun bool, capture *logging.Buffer) (*app, error) {
	path := resolveConfigPath()
	cfg, err := loadConfig(path)
	if err != nil {
		if errors.Is(err, config.ErrNoChannels) {
			return nil, fmt.Errorf("%w (set FEISHU_WEBHOOK_URL, SLACK_WEBHOOK_URL or MATTERMOST_WEBHOOK_URL)", err)
		}
		return nil, err
	}
	return buildApp(ctx, cfg, path, dryRun, capture), nil
}

func buildApp(ctx context.Context, cfg *config.Config, path string, dryRun bool, capture *logging.Buffer) *app {
	a := &app{cfg: cfg, configFile: path, dryRun: dryRun, capture: capture}

	if dryRun && a.capture == nil {
		a.capture = logging.NewBuffer(200, zerolog.WarnLevel)
	}
	a.logs = logging.New(logging.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Console:    logging.ConsoleEnabled(),
		Capture:    a.capture,
	})
	a.logger = a.logs.Logger

	a.hostname = cfg.Hostname
	if a.hostname == "" {
		a.hostname = systemHostname(ctx, a.logger)
	}
	a.wire(cfg)

	a.logger.Debug().
		Str("config", path).
		Str("hostname", a.hostname).
		Str("state_dir", a.store.Dir()).
		Strs("channels", a.notifier.Channels()).
		Bool("dry_run", dryRun).
		Msg("Configuration loaded")
	return a
}

// wire builds the config-dependent parts: state store and notifier
func (a *app) wire(cfg *config.Config) {
	a.cfg = cfg
	a.store = state.NewStore(cfg.StateDir, a.logger)
	a.notifier = notifier.NewNotifier(
		notifier.NewChannels(cfg.Webhooks.Feishu, cfg.Webhooks.Slack, cfg.Webhooks.Mattermost),
		notifier.NewHTTPDeliverer(nil),
		a.logger,
	)
	a.notifier.SetDryRun(a.dryRun)
}

// withConfig returns a copy of a running on cfg. Logging settings are not
// reloaded; they need a restart.
func (a *app) withConfig(ctx context.Context, cfg *config.Config) *app {
	next := *a
	if cfg.Hostname != "" {
		next.hostname = cfg.Hostname
	} else if a.cfg.Hostname != "" {
		next.hostname = systemHostname(ctx, a.logger)
	}
	next.wire(cfg)
	return &next
}

func (a *app) close() {
	_ = a.logs.Close()
}

func systemHostname(ctx context.Context, logger zerolog.Logger) string {
	name, err := collector.Hostname(ctx)
	if err == nil && name != "" {
		return name
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	logger.Warn().Err(err).Msg("Could not determine hostname")
	return "unknown"
}
