package evaluator

import (
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
)

// Evaluator compares sampled resource values against their thresholds
type Evaluator struct {
	thresholds types.Thresholds
	logger     zerolog.Logger
}

// Check is the instantaneous verdict for a single resource kind
type Check struct {
	Kind      types.ResourceKind
	Value     float64
	Threshold float64
	Breaching bool
	Skipped   bool // value was unavailable this cycle
}

// NewEvaluator creates a new threshold evaluator
func NewEvaluator(thresholds types.Thresholds, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		logger:     logger,
	}
}

// Threshold returns the configured threshold for kind and whether one exists
func (e *Evaluator) Threshold(kind types.ResourceKind) (float64, bool) {
	t, ok := e.thresholds[kind]
	return t, ok
}

// Breaching reports whether value is at or above threshold.
func Breaching(value, threshold float64) bool {
	return value >= threshold
}

// EvaluateKind checks one kind of the snapshot
func (e *Evaluator) EvaluateKind(snap types.ResourceSnapshot, kind types.ResourceKind) Check {
	threshold, ok := e.thresholds[kind]
	value := snap.Value(kind)
	check := Check{Kind: kind, Value: value, Threshold: threshold}

	if !ok {
		check.Skipped = true
		return check
	}
	if !snap.Available(kind) {
		e.logger.Warn().
			Str("resource", kind.Key()).
			Msg("Resource value unavailable, skipping this cycle")
		check.Skipped = true
		return check
	}

	check.Breaching = Breaching(value, threshold)
	if check.Breaching {
		e.logger.Warn().
			Str("resource", kind.Key()).
			Float64("value", value).
			Float64("threshold", threshold).
			Msg("Resource at or above threshold")
	}
	return check
}

// Evaluate checks every configured kind of the snapshot, in AllKinds order
func (e *Evaluator) Evaluate(snap types.ResourceSnapshot) []Check {
	checks := make([]Check, 0, len(types.AllKinds))
	for _, kind := range types.AllKinds {
		if _, ok := e.thresholds[kind]; !ok {
			continue
		}
		checks = append(checks, e.EvaluateKind(snap, kind))
	}
	return checks
}
