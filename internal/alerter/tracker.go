package alerter

import (
	"github.com/hostwatch/hostwatch/internal/evaluator"
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
)

// Tracker owns the per-resource consecutive-breach counters and decides when
// a breach becomes sustained. It is not safe for concurrent use; one cycle
// owns one Tracker.
type Tracker struct {
	eval       *evaluator.Evaluator
	checkCount int
	counters   types.BreachState
	logger     zerolog.Logger
}

// NewTracker creates a tracker seeded with counters persisted by a previous
// invocation. A nil initial state starts every counter at zero.
func NewTracker(eval *evaluator.Evaluator, checkCount int, initial types.BreachState, logger zerolog.Logger) *Tracker {
	if checkCount < 1 {
		checkCount = 1
	}
	counters := make(types.BreachState, len(types.AllKinds))
	for _, kind := range types.AllKinds {
		if n := initial[kind]; n > 0 {
			counters[kind] = n
		} else {
			counters[kind] = 0
		}
	}
	return &Tracker{
		eval:       eval,
		checkCount: checkCount,
		counters:   counters,
		logger:     logger.With().Str("component", "breach-tracker").Logger(),
	}
}

// Evaluate applies one snapshot to the counters and returns the kinds whose
// breach became sustained in this cycle.
//
// A kind fires only when its counter reaches checkCount exactly, so a run of
// breaching samples fires once and the counter has to fall back to zero
// before that kind can fire again. Unavailable values leave the counter as is.
func (t *Tracker) Evaluate(snap types.ResourceSnapshot) []types.ResourceReading {
	var fired []types.ResourceReading

	for _, check := range t.eval.Evaluate(snap) {
		if check.Skipped {
			continue
		}

		if !check.Breaching {
			if t.counters[check.Kind] > 0 {
				t.logger.Info().
					Str("resource", check.Kind.Key()).
					Int("previous", t.counters[check.Kind]).
					Msg("Resource below threshold, counter reset")
			}
			t.counters[check.Kind] = 0
			continue
		}

		t.counters[check.Kind]++
		count := t.counters[check.Kind]

		t.logger.Debug().
			Str("resource", check.Kind.Key()).
			Int("count", count).
			Int("check_count", t.checkCount).
			Msg("Breach counted")

		if count == t.checkCount {
			t.logger.Warn().
				Str("resource", check.Kind.Key()).
				Float64("value", check.Value).
				Float64("threshold", check.Threshold).
				Int("consecutive", count).
				Msg("Sustained breach")
			fired = append(fired, types.ResourceReading{
				Kind:      check.Kind,
				Value:     check.Value,
				Threshold: check.Threshold,
				Status:    types.StatusBreaching,
			})
		}
	}

	return fired
}

// Counter returns the current consecutive-breach count for kind
func (t *Tracker) Counter(kind types.ResourceKind) int {
	return t.counters[kind]
}

// Counters returns a copy of all counters for persistence
func (t *Tracker) Counters() types.BreachState {
	return t.counters.Clone()
}

// CheckCount returns the configured number of consecutive breaches required
func (t *Tracker) CheckCount() int {
	return t.checkCount
}
