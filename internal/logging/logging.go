package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hostwatch/hostwatch/internal/version"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the root logger
type Options struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console enables human readable output on stdout
	Console bool
	// Capture, if set, also receives every entry
	Capture *Buffer
}

// Setup is the result of New
type Setup struct {
	Logger zerolog.Logger
	// File is the log file actually in use, empty when logging to stderr only
	File   string
	closer io.Closer
}

// Close flushes and closes the log file
func (s *Setup) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ConsoleEnabled reports whether stdout logging should be on. Cron runs set
// RUNNING_FROM_CRON=true to keep mail from cron quiet.
func ConsoleEnabled() bool {
	return os.Getenv("RUNNING_FROM_CRON") != "true"
}

// New builds the root logger. If the configured file cannot be opened it
// falls back to ~/hostwatch.log and then to stderr only; the fallback is
// reported through the returned logger.
func New(opts Options) *Setup {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	if opts.Level == "warning" {
		level = zerolog.WarnLevel
	}

	setup := &Setup{}
	var writers []io.Writer
	var fallbackFrom string
	var fileErr error

	path, err := writablePath(opts.File)
	if err != nil && opts.File != "" {
		fallbackFrom, fileErr = opts.File, err
		home, herr := os.UserHomeDir()
		if herr == nil {
			path, err = writablePath(filepath.Join(home, "hostwatch.log"))
		}
	}
	if err == nil && path != "" {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, lj)
		setup.File = path
		setup.closer = lj
	}

	switch {
	case opts.Console:
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	case setup.File == "":
		writers = append(writers, os.Stderr)
	}
	if opts.Capture != nil {
		writers = append(writers, opts.Capture)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	setup.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("version", version.GetVersion()).
		Str("commit", version.GetCommit()).
		Logger()

	if fileErr != nil {
		setup.Logger.Warn().
			Err(fileErr).
			Str("requested", fallbackFrom).
			Str("using", setup.File).
			Msg("Log file not writable, using fallback")
	}
	return setup
}

// writablePath makes sure path can be opened for appending
func writablePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	f.Close()
	return path, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
