package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

const defaultCommandTimeout = 60 * time.Second

// ErrTimeout is returned when a command exceeds its timeout
var ErrTimeout = errors.New("command timed out")

// Result is the outcome of one command that was started
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Failed reports whether the command exited nonzero
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Runner executes one shell command
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// Shell runs commands through sh -c
type Shell struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewShell creates a shell runner. A non-positive timeout uses 60s.
func NewShell(timeout time.Duration, logger zerolog.Logger) *Shell {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Shell{
		timeout: timeout,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
}

// Run executes command and waits for it. A nonzero exit is reported in the
// Result with a nil error; only spawn failures and timeouts return an error.
func (s *Shell) Run(ctx context.Context, command string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children of sh can keep the output pipes open after sh is killed
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, s.timeout, command)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %q: %w", command, err)
	}

	s.logger.Debug().
		Str("command", command).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("Command finished")
	return res, nil
}
