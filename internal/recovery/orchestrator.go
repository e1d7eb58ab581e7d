package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hostwatch/hostwatch/internal/collector"
	"github.com/hostwatch/hostwatch/internal/evaluator"
	"github.com/hostwatch/hostwatch/internal/executor"
	"github.com/hostwatch/hostwatch/internal/notifier"
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
)

// State is a step of the recovery flow
type State string

const (
	StateIdle           State = "idle"
	StateAlertedInitial State = "alerted_initial"
	StateRemediating    State = "remediating"
	StateWaiting        State = "waiting"
	StateVerifying      State = "verifying"
	StateAlertedFinal   State = "alerted_final"
)

// Outcome is the final verdict of one HandleBreach call
type Outcome string

const (
	Recovered            Outcome = "recovered"
	StillBreaching       Outcome = "still_breaching"
	NoRecoveryConfigured Outcome = "no_recovery_configured"
)

// Plan is the operator-configured remediation
type Plan struct {
	Enabled  bool
	Commands []string
	Wait     time.Duration
}

// Notifier delivers alert events
type Notifier interface {
	Notify(ctx context.Context, event types.AlertEvent) []notifier.DeliveryResult
}

// CommandResult records one remediation command
type CommandResult struct {
	executor.Result
	Err     error
	Skipped bool // dry run
}

// Failed reports whether the command errored or exited nonzero
func (c CommandResult) Failed() bool {
	return c.Err != nil || c.Result.Failed()
}

// Result is everything that happened while handling one sustained breach
type Result struct {
	IncidentID string
	Outcome    Outcome
	Readings   []types.ResourceReading
	Commands   []CommandResult
	States     []State
	Initial    []notifier.DeliveryResult
	Final      []notifier.DeliveryResult
}

// Options tunes an Orchestrator. Zero values pick the production behaviour.
type Options struct {
	Hostname     string
	CheckCount   int
	TopProcesses int
	DryRun       bool
	Sleeper      Sleeper
	Clock        func() time.Time
	NewID        func() string
}

// Orchestrator runs alert, remediate, wait, verify and report for a
// sustained breach
type Orchestrator struct {
	plan     Plan
	sampler  collector.Sampler
	runner   executor.Runner
	notifier Notifier
	opts     Options
	logger   zerolog.Logger
}

// NewOrchestrator creates an orchestrator for plan
func NewOrchestrator(plan Plan, sampler collector.Sampler, runner executor.Runner, n Notifier, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Sleeper == nil {
		opts.Sleeper = ContextSleeper{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Orchestrator{
		plan:     plan,
		sampler:  sampler,
		runner:   runner,
		notifier: n,
		opts:     opts,
		logger:   logger.With().Str("component", "recovery").Logger(),
	}
}

// HandleBreach processes the kinds that became sustained this cycle. The
// steps always run in order and a failing step never skips the ones after it.
func (o *Orchestrator) HandleBreach(ctx context.Context, fired []types.ResourceReading, snap types.ResourceSnapshot) Result {
	res := Result{
		IncidentID: o.opts.NewID(),
		States:     []State{StateIdle},
	}
	if len(fired) == 0 {
		return res
	}
	logger := o.logger.With().Str("incident", res.IncidentID).Logger()

	res.Initial = o.notifier.Notify(ctx, o.initialEvent(ctx, res.IncidentID, fired, snap))
	o.enter(&res, StateAlertedInitial, logger)

	if !o.plan.Enabled {
		logger.Info().Msg("Recovery disabled, initial alert only")
		res.Outcome = NoRecoveryConfigured
		return res
	}

	o.enter(&res, StateRemediating, logger)
	for _, command := range o.plan.Commands {
		res.Commands = append(res.Commands, o.runCommand(ctx, command, logger))
	}

	o.enter(&res, StateWaiting, logger)
	if o.opts.DryRun {
		logger.Info().Dur("wait", o.plan.Wait).Msg("Dry run, skipping post-recovery wait")
	} else if o.plan.Wait > 0 && ctx.Err() == nil {
		logger.Info().Dur("wait", o.plan.Wait).Msg("Waiting before verification")
		if err := o.opts.Sleeper.Sleep(ctx, o.plan.Wait); err != nil {
			logger.Warn().Err(err).Msg("Wait interrupted, verifying now")
		}
	}

	// verification and the final report still run after a shutdown signal
	if ctx.Err() != nil {
		logger.Warn().Err(ctx.Err()).Msg("Cancelled during recovery, sending final report anyway")
		ctx = context.WithoutCancel(ctx)
	}

	o.enter(&res, StateVerifying, logger)
	readings, after := o.verify(ctx, fired, logger)
	res.Readings = readings
	res.Outcome = Recovered
	for _, r := range res.Readings {
		if r.Status != types.StatusRecovered {
			res.Outcome = StillBreaching
			break
		}
	}

	res.Final = o.notifier.Notify(ctx, types.AlertEvent{
		ID:        res.IncidentID,
		Phase:     types.PhasePostRecovery,
		Hostname:  o.opts.Hostname,
		Timestamp: o.opts.Clock(),
		Resources: res.Readings,
		Snapshot:  after,
	})
	o.enter(&res, StateAlertedFinal, logger)

	logger.Info().
		Str("outcome", string(res.Outcome)).
		Int("commands", len(res.Commands)).
		Msg("Recovery flow finished")
	return res
}

func (o *Orchestrator) enter(res *Result, s State, logger zerolog.Logger) {
	res.States = append(res.States, s)
	logger.Debug().Str("state", string(s)).Msg("Recovery state")
}

func (o *Orchestrator) initialEvent(ctx context.Context, id string, fired []types.ResourceReading, snap types.ResourceSnapshot) types.AlertEvent {
	event := types.AlertEvent{
		ID:         id,
		Phase:      types.PhaseInitial,
		Hostname:   o.opts.Hostname,
		Timestamp:  o.opts.Clock(),
		Resources:  fired,
		Snapshot:   &snap,
		CheckCount: o.opts.CheckCount,
	}

	if o.opts.TopProcesses > 0 && containsKind(fired, types.Memory) {
		procs, err := o.sampler.TopProcesses(ctx, o.opts.TopProcesses)
		if err != nil {
			o.logger.Warn().Err(err).Msg("Failed to list top memory processes")
		}
		event.TopProcesses = procs
	}
	return event
}

func (o *Orchestrator) runCommand(ctx context.Context, command string, logger zerolog.Logger) (cr CommandResult) {
	cr.Command = command
	if o.opts.DryRun {
		logger.Info().Str("command", command).Msg("Dry run, recovery command not executed")
		cr.Skipped = true
		return cr
	}

	defer func() {
		if r := recover(); r != nil {
			cr.Err = fmt.Errorf("panic running %q: %v", command, r)
			logger.Error().Err(cr.Err).Msg("Recovery command failed")
		}
	}()

	logger.Info().Str("command", command).Msg("Running recovery command")
	result, err := o.runner.Run(ctx, command)
	cr.Result = result
	cr.Command = command
	cr.Err = err

	switch {
	case err != nil:
		logger.Error().Err(err).Str("command", command).Msg("Recovery command failed")
	case result.Failed():
		logger.Error().
			Str("command", command).
			Int("exit_code", result.ExitCode).
			Str("stderr", result.Stderr).
			Msg("Recovery command exited nonzero")
	default:
		logger.Info().
			Str("command", command).
			Dur("duration", result.Duration).
			Msg("Recovery command succeeded")
	}
	return cr
}

// verify re-samples and judges every fired kind on its instantaneous value.
// A kind that cannot be read counts as still breaching. The snapshot is nil
// when re-sampling failed entirely.
func (o *Orchestrator) verify(ctx context.Context, fired []types.ResourceReading, logger zerolog.Logger) ([]types.ResourceReading, *types.ResourceSnapshot) {
	snap, err := o.resample(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to re-sample after recovery")
	}

	readings := make([]types.ResourceReading, 0, len(fired))
	for _, f := range fired {
		r := types.ResourceReading{
			Kind:      f.Kind,
			Value:     types.Unavailable,
			Threshold: f.Threshold,
			Status:    types.StatusStillBreaching,
		}
		if err == nil && snap.Available(f.Kind) {
			r.Value = snap.Value(f.Kind)
			if !evaluator.Breaching(r.Value, f.Threshold) {
				r.Status = types.StatusRecovered
			}
		}
		logger.Info().
			Str("resource", f.Kind.Key()).
			Float64("value", r.Value).
			Float64("threshold", r.Threshold).
			Str("status", string(r.Status)).
			Msg("Post-recovery check")
		readings = append(readings, r)
	}
	if err != nil {
		return readings, nil
	}
	return readings, &snap
}

// resample turns a sampler panic into an error
func (o *Orchestrator) resample(ctx context.Context) (snap types.ResourceSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while sampling: %v", r)
		}
	}()
	return o.sampler.Sample(ctx)
}

func containsKind(readings []types.ResourceReading, kind types.ResourceKind) bool {
	for _, r := range readings {
		if r.Kind == kind {
			return true
		}
	}
	return false
}
