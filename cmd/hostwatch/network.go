package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostwatch/hostwatch/internal/alerter"
	"github.com/hostwatch/hostwatch/internal/netcheck"
	"github.com/hostwatch/hostwatch/internal/notifier"
	"github.com/hostwatch/hostwatch/internal/textfile"
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/spf13/cobra"
)

var networkTest bool

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Run one network reachability cycle",
	Long: `Probe the configured network target (http, https, grpc or gnmi) with
retries. The first cycle that reaches the failure threshold sends a Network
Down alert; the first success afterwards sends Network Restored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNetwork(cmd, networkTest)
	},
}

func init() {
	networkCmd.Flags().BoolVar(&networkTest, "test", false, "dry run: deliver nothing, persist nothing, print a report")
	rootCmd.AddCommand(networkCmd)
}

// networkReport is what one network cycle did
type networkReport struct {
	Previous types.NetworkState
	Next     types.NetworkState
	Result   netcheck.Result
	Preview  []notifier.DeliveryResult
}

func runNetwork(cmd *cobra.Command, dryRun bool) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, dryRun, nil)
	if err != nil {
		return err
	}
	defer a.close()

	prober, err := a.newProber()
	if err != nil {
		return err
	}

	rep := a.networkCycle(ctx, prober)
	if dryRun {
		printNetworkReport(cmd.OutOrStdout(), a, rep)
	}
	return nil
}

func (a *app) newProber() (netcheck.Prober, error) {
	n := a.cfg.Network
	prober, err := netcheck.NewProber(n.Target, n.Timeout, netcheck.Credentials{
		Username: n.Username,
		Password: n.Password(),
	})
	if err != nil {
		return nil, fmt.Errorf("network cycle: %w", err)
	}
	return prober, nil
}

// networkCycle probes the target and updates the outage state. Failures
// are reported through notifications and the state, never as an error.
func (a *app) networkCycle(ctx context.Context, prober netcheck.Prober) networkReport {
	logger := a.logger.With().Str("component", "network").Logger()
	n := a.cfg.Network

	checker := netcheck.NewChecker(prober, a.notifier, netcheck.Options{
		Target:           n.Target,
		Hostname:         a.hostname,
		MaxRetry:         n.MaxRetry,
		RetryInterval:    n.RetryInterval,
		FailureThreshold: n.FailureThreshold,
	}, a.logger)

	rep := networkReport{Previous: a.store.LoadNetwork()}
	rep.Next, rep.Result = checker.Run(ctx, rep.Previous)

	if a.dryRun {
		if rep.Result.Transition == alerter.NoTransition {
			rep.Preview = a.notifier.Notify(ctx, networkPreview(a, rep.Result))
		}
		return rep
	}

	if err := a.store.SaveNetwork(rep.Next); err != nil {
		logger.Error().Err(err).Msg("Failed to save network state")
	}
	if a.cfg.MetricsTextfile != "" {
		path := textfile.NetworkPath(a.cfg.MetricsTextfile)
		gauges := textfile.NetworkGauges(n.Target, rep.Result.Reachable, rep.Next.ConsecutiveFailures)
		if err := textfile.Write(path, gauges); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
		}
	}
	return rep
}

func networkPreview(a *app, res netcheck.Result) types.AlertEvent {
	event := types.AlertEvent{
		ID:        "preview",
		Phase:     types.PhaseNetworkDown,
		Hostname:  a.hostname,
		Timestamp: time.Now(),
		Target:    a.cfg.Network.Target,
		Detail:    res.Detail,
	}
	if res.Reachable {
		event.Phase = types.PhaseNetworkRestored
	}
	return event
}
