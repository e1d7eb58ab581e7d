package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hostwatch/hostwatch/internal/alerter"
	"github.com/hostwatch/hostwatch/internal/collector"
	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/executor"
	"github.com/hostwatch/hostwatch/internal/recovery"
	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSampler struct {
	mu    sync.Mutex
	snaps []types.ResourceSnapshot
	err   error
}

func (s *scriptedSampler) Sample(context.Context) (types.ResourceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return types.ResourceSnapshot{}, s.err
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

func (s *scriptedSampler) TopProcesses(context.Context, int) ([]types.ProcessInfo, error) {
	return nil, nil
}

type recordingRunner struct {
	commands []string
}

func (r *recordingRunner) Run(_ context.Context, command string) (executor.Result, error) {
	r.commands = append(r.commands, command)
	return executor.Result{Command: command}, nil
}

type failingProber struct{}

func (failingProber) Probe(context.Context) (string, error) {
	return "", errors.New("connection refused")
}

func cpuAt(v float64) types.ResourceSnapshot {
	return types.ResourceSnapshot{CPU: v, Memory: 10, Swap: 0, Disk: 20, Timestamp: time.Now()}
}

func newWebhook(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testApp(t *testing.T, dryRun bool, mutate func(*config.Config)) *app {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	cfg := config.Defaults()
	cfg.Hostname = "web-01"
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.Log.File = filepath.Join(dir, "hostwatch.log")
	cfg.Log.Level = "debug"
	if mutate != nil {
		mutate(cfg)
	}

	a := buildApp(context.Background(), cfg, "", dryRun, nil)
	t.Cleanup(a.close)
	return a
}

func TestResourceCycle_FiresAcrossInvocations(t *testing.T) {
	srv, hits := newWebhook(t)
	metrics := filepath.Join(t.TempDir(), "hostwatch.prom")

	mutate := func(cfg *config.Config) {
		cfg.Webhooks.Slack = srv.URL
		cfg.CheckCount = 2
		cfg.Recovery.Commands = []string{"systemctl restart app"}
		cfg.Recovery.WaitTime = 0
		cfg.MetricsTextfile = metrics
	}
	a := testApp(t, false, mutate)
	runner := &recordingRunner{}

	// first invocation: counter 1, nothing fires
	rep, err := a.resourceCycle(context.Background(), &scriptedSampler{snaps: []types.ResourceSnapshot{cpuAt(95)}}, runner)
	require.NoError(t, err)
	assert.Empty(t, rep.Fired)
	assert.Equal(t, 1, a.store.LoadBreach()[types.CPU])
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))

	// second invocation reads the saved counter and fires
	sampler := &scriptedSampler{snaps: []types.ResourceSnapshot{cpuAt(96), cpuAt(80)}}
	rep, err = a.resourceCycle(context.Background(), sampler, runner)
	require.NoError(t, err)
	require.Len(t, rep.Fired, 1)
	assert.Equal(t, 96.0, rep.Fired[0].Value)
	require.NotNil(t, rep.Recovery)
	assert.Equal(t, recovery.Recovered, rep.Recovery.Outcome)
	assert.Equal(t, []string{"systemctl restart app"}, runner.commands)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	assert.Equal(t, 2, a.store.LoadBreach()[types.CPU])

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `hostwatch_breach_consecutive{resource="cpu"} 2`)
}

func TestResourceCycle_DryRunDeliversAndSavesNothing(t *testing.T) {
	srv, hits := newWebhook(t)
	a := testApp(t, true, func(cfg *config.Config) {
		cfg.Webhooks.Slack = srv.URL
		cfg.Webhooks.Feishu = srv.URL
		cfg.CheckCount = 1
		cfg.Recovery.Commands = []string{"reboot"}
		cfg.Recovery.WaitTime = time.Hour
	})
	runner := &recordingRunner{}

	start := time.Now()
	rep, err := a.resourceCycle(context.Background(), &scriptedSampler{snaps: []types.ResourceSnapshot{cpuAt(99)}}, runner)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Minute)

	require.NotNil(t, rep.Recovery)
	require.Len(t, rep.Recovery.Commands, 1)
	assert.True(t, rep.Recovery.Commands[0].Skipped)
	assert.Empty(t, runner.commands)
	for _, d := range rep.Recovery.Initial {
		assert.True(t, d.DryRun)
		assert.NotEmpty(t, d.Payload)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))

	_, err = os.Stat(a.cfg.StateDir)
	assert.True(t, os.IsNotExist(err), "dry run must not create the state dir")

	var out bytes.Buffer
	printResourceReport(&out, a, rep, nil)
	assert.Contains(t, out.String(), "reboot")
	assert.Contains(t, out.String(), "Dry run complete")
}

func TestResourceCycle_DryRunPreviewWhenNothingFires(t *testing.T) {
	srv, hits := newWebhook(t)
	a := testApp(t, true, func(cfg *config.Config) {
		cfg.Webhooks.Mattermost = srv.URL
	})

	rep, err := a.resourceCycle(context.Background(), &scriptedSampler{snaps: []types.ResourceSnapshot{cpuAt(12)}}, &recordingRunner{})
	require.NoError(t, err)
	assert.Nil(t, rep.Recovery)
	require.Len(t, rep.Preview, 1)
	assert.Equal(t, "mattermost", rep.Preview[0].Channel)
	assert.Contains(t, string(rep.Preview[0].Payload), "web-01")
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestResourceCycle_TotalSamplingFailure(t *testing.T) {
	srv, hits := newWebhook(t)
	a := testApp(t, false, func(cfg *config.Config) {
		cfg.Webhooks.Slack = srv.URL
	})

	_, err := a.resourceCycle(context.Background(), &scriptedSampler{err: collector.ErrSamplingFailed}, &recordingRunner{})
	assert.ErrorIs(t, err, collector.ErrSamplingFailed)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestNetworkCycle_FiresOncePerOutage(t *testing.T) {
	srv, hits := newWebhook(t)
	a := testApp(t, false, func(cfg *config.Config) {
		cfg.Webhooks.Slack = srv.URL
		cfg.Network.MaxRetry = 2
		cfg.Network.RetryInterval = time.Millisecond
	})

	rep := a.networkCycle(context.Background(), failingProber{})
	assert.Equal(t, alerter.OutageFired, rep.Result.Transition)
	assert.Equal(t, 2, rep.Result.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	saved := a.store.LoadNetwork()
	assert.True(t, saved.Alerted)
	assert.Equal(t, 1, saved.ConsecutiveFailures)

	rep = a.networkCycle(context.Background(), failingProber{})
	assert.Equal(t, alerter.NoTransition, rep.Result.Transition)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestRootCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"resources", "network", "daemon", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestCycleSummaries(t *testing.T) {
	assert.Equal(t, "no sustained breach", resourceSummary(resourceReport{}, nil))
	assert.Equal(t, "resource cycle: boom", resourceSummary(resourceReport{}, errors.New("resource cycle: boom")))

	rep := resourceReport{
		Fired:    []types.ResourceReading{{Kind: types.CPU}, {Kind: types.Memory}},
		Recovery: &recovery.Result{Outcome: recovery.StillBreaching},
	}
	assert.Equal(t, "sustained breach on cpu, memory: still_breaching", resourceSummary(rep, nil))

	down := networkReport{}
	down.Result.Attempts = 5
	down.Result.Detail = "timed out after 5s"
	assert.Equal(t, "unreachable after 5 attempts: timed out after 5s", networkSummary(down))
}
