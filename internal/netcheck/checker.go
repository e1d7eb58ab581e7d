package netcheck

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hostwatch/hostwatch/internal/alerter"
	"github.com/hostwatch/hostwatch/internal/notifier"
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
)

// Notifier delivers alert events
type Notifier interface {
	Notify(ctx context.Context, event types.AlertEvent) []notifier.DeliveryResult
}

// Options configures a Checker
type Options struct {
	Target           string
	Hostname         string
	MaxRetry         int
	RetryInterval    time.Duration
	FailureThreshold int

	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
	Clock func() time.Time
}

// Result is the outcome of one network cycle
type Result struct {
	Reachable    bool
	Detail       string
	Attempts     int
	Transition   alerter.Transition
	DownDuration time.Duration
	Deliveries   []notifier.DeliveryResult
}

// Checker probes one target with retries and reports outages
type Checker struct {
	prober   Prober
	notifier Notifier
	opts     Options
	logger   zerolog.Logger
}

// NewChecker creates a checker
func NewChecker(prober Prober, n Notifier, opts Options, logger zerolog.Logger) *Checker {
	if opts.MaxRetry < 1 {
		opts.MaxRetry = 1
	}
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Checker{
		prober:   prober,
		notifier: n,
		opts:     opts,
		logger:   logger.With().Str("component", "netcheck").Str("target", opts.Target).Logger(),
	}
}

// Check probes the target up to MaxRetry times, RetryInterval apart, and
// stops at the first success.
func (c *Checker) Check(ctx context.Context) Result {
	c.logger.Info().Msg("Checking network connectivity")

	var res Result
	for attempt := 1; attempt <= c.opts.MaxRetry; attempt++ {
		res.Attempts = attempt
		detail, err := c.prober.Probe(ctx)
		if err == nil {
			res.Reachable = true
			res.Detail = detail
			c.logger.Info().Int("attempt", attempt).Str("detail", detail).Msg("Network check successful")
			return res
		}
		res.Detail = err.Error()

		if attempt == c.opts.MaxRetry {
			break
		}
		c.logger.Info().
			Err(err).
			Int("attempt", attempt).
			Int("max_retry", c.opts.MaxRetry).
			Dur("retry_in", c.opts.RetryInterval).
			Msg("Network check failed, retrying")
		if err := c.opts.Sleep(ctx, c.opts.RetryInterval); err != nil {
			c.logger.Warn().Err(err).Msg("Retry wait interrupted")
			break
		}
	}

	c.logger.Warn().
		Int("attempts", res.Attempts).
		Str("detail", res.Detail).
		Msg("Network connectivity is down")
	return res
}

// Run performs one cycle: check, update the outage state, and notify on a
// fired or restored outage. It returns the state to persist.
func (c *Checker) Run(ctx context.Context, state types.NetworkState) (types.NetworkState, Result) {
	tracker := alerter.NewOutageTracker(c.opts.Target, c.opts.FailureThreshold, state, c.logger)

	res := c.Check(ctx)
	now := c.opts.Clock()
	res.Transition, res.DownDuration = tracker.Record(res.Reachable, res.Detail, now)

	switch res.Transition {
	case alerter.OutageFired:
		res.Deliveries = c.notifier.Notify(ctx, types.AlertEvent{
			ID:        uuid.New().String(),
			Phase:     types.PhaseNetworkDown,
			Hostname:  c.opts.Hostname,
			Timestamp: now,
			Target:    c.opts.Target,
			Detail:    res.Detail,
		})
	case alerter.OutageRestored:
		res.Deliveries = c.notifier.Notify(ctx, types.AlertEvent{
			ID:           uuid.New().String(),
			Phase:        types.PhaseNetworkRestored,
			Hostname:     c.opts.Hostname,
			Timestamp:    now,
			Target:       c.opts.Target,
			Detail:       res.Detail,
			DownDuration: res.DownDuration,
		})
	}

	return tracker.State(), res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
