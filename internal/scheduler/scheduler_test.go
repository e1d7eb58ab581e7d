package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_RejectsNonPositiveInterval(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	err := s.Schedule(Job{Name: "resources", Run: func(context.Context) {}})
	assert.Error(t, err)
}

func TestSchedule_ReplacesByName(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	noop := func(context.Context) {}

	require.NoError(t, s.Schedule(Job{Name: "resources", Every: time.Minute, Run: noop}))
	require.NoError(t, s.Schedule(Job{Name: "network", Every: time.Minute, Run: noop}))
	require.NoError(t, s.Schedule(Job{Name: "resources", Every: 2 * time.Minute, Run: noop}))

	assert.ElementsMatch(t, []string{"resources", "network"}, s.Jobs())
}

func TestTrigger_SkipsWhileRunning(t *testing.T) {
	var started int32
	release := make(chan struct{})

	s := New(context.Background(), zerolog.Nop())
	require.NoError(t, s.Schedule(Job{
		Name:  "resources",
		Every: time.Hour,
		Run: func(context.Context) {
			atomic.AddInt32(&started, 1)
			<-release
		},
	}))

	require.True(t, s.Trigger("resources"))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&started) == 1 }, time.Second, 10*time.Millisecond)

	// the first run is still blocked, so this one is dropped
	require.True(t, s.Trigger("resources"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&started))

	close(release)
	assert.False(t, s.Trigger("unknown"))
}

func TestTrigger_NoOverlapAcrossReschedule(t *testing.T) {
	var active, maxActive, runs int32
	release := make(chan struct{})
	job := func(context.Context) {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		atomic.AddInt32(&runs, 1)
		<-release
	}

	s := New(context.Background(), zerolog.Nop())
	require.NoError(t, s.Schedule(Job{Name: "resources", Every: time.Hour, Run: job}))
	require.True(t, s.Trigger("resources"))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 10*time.Millisecond)

	// a config reload replaces the job while the first run is blocked
	require.NoError(t, s.Schedule(Job{Name: "resources", Every: 2 * time.Hour, Run: job}))
	require.True(t, s.Trigger("resources"))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))

	close(release)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&active) == 0 }, time.Second, 10*time.Millisecond)

	// the guard is released once the old run finishes
	blocked := make(chan struct{})
	require.NoError(t, s.Schedule(Job{Name: "resources", Every: time.Hour, Run: func(context.Context) { close(blocked) }}))
	require.True(t, s.Trigger("resources"))
	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run after the previous run finished")
	}
}

func TestJobReceivesSchedulerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)

	s := New(ctx, zerolog.Nop())
	require.NoError(t, s.Schedule(Job{
		Name:  "network",
		Every: time.Hour,
		Run: func(ctx context.Context) {
			<-ctx.Done()
			got <- ctx.Err()
		},
	}))
	s.Trigger("network")
	cancel()

	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
}

func TestStartStop(t *testing.T) {
	var runs int32
	s := New(context.Background(), zerolog.Nop())
	require.NoError(t, s.Schedule(Job{
		Name:  "resources",
		Every: time.Second,
		Run:   func(context.Context) { atomic.AddInt32(&runs, 1) },
	}))

	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}
