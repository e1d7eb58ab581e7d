package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostwatch/hostwatch/internal/alerter"
	"github.com/hostwatch/hostwatch/internal/collector"
	"github.com/hostwatch/hostwatch/internal/evaluator"
	"github.com/hostwatch/hostwatch/internal/executor"
	"github.com/hostwatch/hostwatch/internal/notifier"
	"github.com/hostwatch/hostwatch/internal/recovery"
	"github.com/hostwatch/hostwatch/internal/textfile"
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var resourcesTest bool

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Run one resource check cycle",
	Long: `Sample CPU, memory, swap and disk usage, update the consecutive breach
counters and, when a resource has been over its threshold for check_count
cycles, alert and run the recovery plan. Meant to be run from cron every
check_interval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResources(cmd, resourcesTest)
	},
}

func init() {
	resourcesCmd.Flags().BoolVar(&resourcesTest, "test", false, "dry run: deliver nothing, persist nothing, run no commands, print a report")
	rootCmd.AddCommand(resourcesCmd)
}

// resourceReport is what one resource cycle did
type resourceReport struct {
	Snapshot types.ResourceSnapshot
	Checks   []evaluator.Check
	Counters types.BreachState
	Fired    []types.ResourceReading
	Recovery *recovery.Result

	// Preview holds the rendered dry-run alert when nothing fired
	Preview []notifier.DeliveryResult
}

func runResources(cmd *cobra.Command, dryRun bool) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, dryRun, nil)
	if err != nil {
		return err
	}
	defer a.close()

	sampler := collector.NewHostSampler(a.cfg.DiskPath, a.logger)
	runner := executor.NewShell(a.cfg.Recovery.CommandTimeout, a.logger)

	rep, err := a.resourceCycle(ctx, sampler, runner)
	if dryRun {
		printResourceReport(cmd.OutOrStdout(), a, rep, err)
	}
	return err
}

// resourceCycle runs sample, evaluate, and, for kinds that fired, the
// recovery flow. Only a total sampling failure is returned as an error.
func (a *app) resourceCycle(ctx context.Context, sampler collector.Sampler, runner executor.Runner) (resourceReport, error) {
	logger := a.logger.With().Str("component", "resources").Logger()
	var rep resourceReport

	snap, err := sampler.Sample(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Resource sampling failed, aborting cycle")
		return rep, fmt.Errorf("resource cycle: %w", err)
	}
	rep.Snapshot = snap

	thresholds := a.cfg.Thresholds.Map()
	eval := evaluator.NewEvaluator(thresholds, a.logger)
	tracker := alerter.NewTracker(eval, a.cfg.CheckCount, a.store.LoadBreach(), a.logger)

	rep.Fired = tracker.Evaluate(snap)
	rep.Counters = tracker.Counters()
	// quiet copy for the report; the tracker already logged unavailable kinds
	rep.Checks = evaluator.NewEvaluator(thresholds, zerolog.Nop()).Evaluate(snap)

	logger.Info().
		Float64("cpu", snap.CPU).
		Float64("memory", snap.Memory).
		Float64("swap", snap.Swap).
		Float64("disk", snap.Disk).
		Int("fired", len(rep.Fired)).
		Msg("Resource check complete")

	switch {
	case len(rep.Fired) > 0:
		orch := recovery.NewOrchestrator(
			recovery.Plan{
				Enabled:  a.cfg.Recovery.Enabled,
				Commands: a.cfg.Recovery.Commands,
				Wait:     a.cfg.Recovery.WaitTime,
			},
			sampler,
			runner,
			a.notifier,
			recovery.Options{
				Hostname:     a.hostname,
				CheckCount:   a.cfg.CheckCount,
				TopProcesses: a.cfg.TopProcesses,
				DryRun:       a.dryRun,
			},
			a.logger,
		)
		res := orch.HandleBreach(ctx, rep.Fired, snap)
		rep.Recovery = &res

	case a.dryRun:
		// nothing fired, still show what an alert would look like
		rep.Preview = a.notifier.Notify(ctx, previewEvent(a, rep.Checks, snap))
	}

	if a.dryRun {
		return rep, nil
	}

	if err := a.store.SaveBreach(rep.Counters); err != nil {
		logger.Error().Err(err).Msg("Failed to save breach counters")
	}
	if a.cfg.MetricsTextfile != "" {
		gauges := textfile.ResourceGauges(snap, thresholds, rep.Counters, time.Now())
		if err := textfile.Write(a.cfg.MetricsTextfile, gauges); err != nil {
			logger.Error().Err(err).Str("path", a.cfg.MetricsTextfile).Msg("Failed to write metrics textfile")
		}
	}
	return rep, nil
}

func previewEvent(a *app, checks []evaluator.Check, snap types.ResourceSnapshot) types.AlertEvent {
	event := types.AlertEvent{
		ID:         "preview",
		Phase:      types.PhaseInitial,
		Hostname:   a.hostname,
		Timestamp:  time.Now(),
		Snapshot:   &snap,
		CheckCount: a.cfg.CheckCount,
	}
	for _, c := range checks {
		if c.Skipped {
			continue
		}
		event.Resources = append(event.Resources, types.ResourceReading{
			Kind:      c.Kind,
			Value:     c.Value,
			Threshold: c.Threshold,
			Status:    types.StatusBreaching,
		})
	}
	return event
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
