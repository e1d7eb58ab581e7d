package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hostwatch/hostwatch/internal/api"
	"github.com/hostwatch/hostwatch/internal/collector"
	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/executor"
	"github.com/hostwatch/hostwatch/internal/logging"
	"github.com/hostwatch/hostwatch/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	resourcesJob = "resources"
	networkJob   = "network"
)

var daemonListen string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the resource and network cycles on a schedule",
	Long: `Run both pipelines in one long-lived process for hosts without cron. The
resource cycle runs every check_interval and the network cycle every
network.check_interval. Runs of one pipeline never overlap. The config file is
reloaded when it changes.

With --listen, a small HTTP API reports the latest cycles (/status), recent
log entries (/api/logs), and accepts POST /api/reload and POST /api/run/<job>.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonListen, "listen", "", "status API address, e.g. 127.0.0.1:9105 (disabled when empty)")
	rootCmd.AddCommand(daemonCmd)
}

// daemon swaps the active app on config reload; a running cycle keeps the
// app it started with.
type daemon struct {
	mu     sync.Mutex
	app    *app
	sched  *scheduler.Scheduler
	status *api.Server
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logs *logging.Buffer
	if daemonListen != "" {
		logs = logging.NewBuffer(500, zerolog.InfoLevel)
	}

	a, err := newApp(ctx, false, logs)
	if err != nil {
		return err
	}
	defer a.close()

	d := &daemon{app: a, sched: scheduler.New(ctx, a.logger)}
	if err := d.schedule(a); err != nil {
		return err
	}

	if daemonListen != "" {
		d.status = api.NewServer(daemonListen, a.logger)
		d.status.SetHostname(a.hostname)
		d.status.SetLogBuffer(logs)
		d.status.SetTriggerFunc(d.sched.Trigger)
		d.status.SetReloadFunc(func() error {
			cfg, err := loadConfig(d.current().configFile)
			if err != nil {
				return err
			}
			d.reload(ctx, cfg)
			return nil
		})
		go func() {
			if err := d.status.Start(ctx); err != nil {
				a.logger.Error().Err(err).Msg("Status API server stopped")
			}
		}()
	}

	d.sched.Start()
	d.sched.Trigger(resourcesJob)
	d.sched.Trigger(networkJob)

	if a.configFile != "" {
		go func() {
			if err := config.Watch(ctx, a.configFile, a.logger, func(cfg *config.Config) {
				applyOverrides(cfg)
				d.reload(ctx, cfg)
			}); err != nil {
				a.logger.Warn().Err(err).Msg("Config watch unavailable, reload disabled")
			}
		}()
	}

	a.logger.Info().
		Strs("jobs", d.sched.Jobs()).
		Msg("hostwatch daemon running")

	<-ctx.Done()
	a.logger.Info().Msg("Shutting down, waiting for running cycles")
	d.sched.Stop()
	return nil
}

func (d *daemon) current() *app {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.app
}

func (d *daemon) schedule(a *app) error {
	err := d.sched.Schedule(scheduler.Job{
		Name:  resourcesJob,
		Every: a.cfg.CheckInterval,
		Run:   d.runResources,
	})
	if err != nil {
		return err
	}
	return d.sched.Schedule(scheduler.Job{
		Name:  networkJob,
		Every: a.cfg.Network.CheckInterval,
		Run:   d.runNetwork,
	})
}

func (d *daemon) reload(ctx context.Context, cfg *config.Config) {
	d.mu.Lock()
	next := d.app.withConfig(ctx, cfg)
	d.app = next
	d.mu.Unlock()

	if d.status != nil {
		d.status.SetHostname(next.hostname)
	}
	if err := d.schedule(next); err != nil {
		next.logger.Error().Err(err).Msg("Failed to reschedule jobs after reload")
	}
}

func (d *daemon) runResources(ctx context.Context) {
	a := d.current()
	start := time.Now()
	sampler := collector.NewHostSampler(a.cfg.DiskPath, a.logger)
	runner := executor.NewShell(a.cfg.Recovery.CommandTimeout, a.logger)

	// the cycle logs its own errors
	rep, err := a.resourceCycle(ctx, sampler, runner)
	d.record(resourcesJob, start, err == nil, resourceSummary(rep, err))
}

func (d *daemon) runNetwork(ctx context.Context) {
	a := d.current()
	start := time.Now()
	prober, err := a.newProber()
	if err != nil {
		a.logger.Error().Err(err).Msg("Network check skipped")
		d.record(networkJob, start, false, err.Error())
		return
	}
	rep := a.networkCycle(ctx, prober)
	d.record(networkJob, start, rep.Result.Reachable, networkSummary(rep))
}

func (d *daemon) record(job string, start time.Time, ok bool, summary string) {
	if d.status == nil {
		return
	}
	d.status.RecordCycle(api.CycleStatus{
		Job:     job,
		At:      start,
		Took:    time.Since(start),
		OK:      ok,
		Summary: summary,
	})
}

func resourceSummary(rep resourceReport, err error) string {
	if err != nil {
		return err.Error()
	}
	if rep.Recovery == nil {
		return "no sustained breach"
	}
	kinds := make([]string, 0, len(rep.Fired))
	for _, r := range rep.Fired {
		kinds = append(kinds, r.Kind.Key())
	}
	return fmt.Sprintf("sustained breach on %s: %s", strings.Join(kinds, ", "), rep.Recovery.Outcome)
}

func networkSummary(rep networkReport) string {
	if rep.Result.Reachable {
		return "reachable: " + rep.Result.Detail
	}
	return fmt.Sprintf("unreachable after %d attempts: %s", rep.Result.Attempts, rep.Result.Detail)
}
