package alerter

import (
	"time"

	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
)

// Transition is the edge, if any, produced by recording one reachability result
type Transition int

const (
	NoTransition Transition = iota
	OutageFired
	OutageRestored
)

func (t Transition) String() string {
	switch t {
	case OutageFired:
		return "fired"
	case OutageRestored:
		return "restored"
	default:
		return "none"
	}
}

// OutageTracker mirrors Tracker for a single boolean reachability signal.
type OutageTracker struct {
	threshold int
	state     types.NetworkState
	logger    zerolog.Logger
}

// NewOutageTracker creates a tracker for target seeded with a persisted state.
// State recorded for a different target is discarded.
func NewOutageTracker(target string, threshold int, initial types.NetworkState, logger zerolog.Logger) *OutageTracker {
	if threshold < 1 {
		threshold = 1
	}
	log := logger.With().Str("component", "outage-tracker").Str("target", target).Logger()

	state := initial
	if state.TargetURL != target {
		if state.TargetURL != "" {
			log.Info().
				Str("previous_target", state.TargetURL).
				Msg("Network target changed, resetting state")
		}
		state = types.NetworkState{TargetURL: target}
	}
	if state.ConsecutiveFailures < 0 {
		state.ConsecutiveFailures = 0
	}

	return &OutageTracker{
		threshold: threshold,
		state:     state,
		logger:    log,
	}
}

// Record applies one check result observed at `at`. On OutageRestored the
// returned duration is how long the outage lasted.
func (o *OutageTracker) Record(reachable bool, detail string, at time.Time) (Transition, time.Duration) {
	if reachable {
		wasAlerted := o.state.Alerted
		since := o.state.Since
		o.state.ConsecutiveFailures = 0
		o.state.Alerted = false
		o.state.LastError = ""
		o.state.Since = time.Time{}

		if wasAlerted {
			down := at.Sub(since)
			if since.IsZero() || down < 0 {
				down = 0
			}
			o.logger.Info().Dur("down_for", down).Msg("Reachability restored")
			return OutageRestored, down
		}
		return NoTransition, 0
	}

	if o.state.ConsecutiveFailures == 0 {
		o.state.Since = at
	}
	o.state.ConsecutiveFailures++
	o.state.LastError = detail

	o.logger.Warn().
		Int("consecutive_failures", o.state.ConsecutiveFailures).
		Int("threshold", o.threshold).
		Str("detail", detail).
		Msg("Reachability check failed")

	if o.state.ConsecutiveFailures == o.threshold && !o.state.Alerted {
		o.state.Alerted = true
		o.logger.Error().Msg("Network outage confirmed")
		return OutageFired, 0
	}
	return NoTransition, 0
}

// State returns the state to persist
func (o *OutageTracker) State() types.NetworkState {
	return o.state
}
