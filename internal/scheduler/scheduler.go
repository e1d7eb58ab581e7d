package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named pipeline run on a fixed interval
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

// Scheduler runs jobs on @every schedules. Runs of the same job never
// overlap: a tick that arrives while the previous run is still going is
// skipped. The guard is kept per job name, so it also holds across
// Schedule calls that replace a job whose previous run is still going.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	entries map[string]cron.EntryID
	running map[string]*sync.Mutex
	mu      sync.Mutex
	logger  zerolog.Logger
}

// New creates a scheduler. ctx is handed to every job run and should be
// cancelled on shutdown.
func New(ctx context.Context, logger zerolog.Logger) *Scheduler {
	log := logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		ctx:     ctx,
		entries: make(map[string]cron.EntryID),
		running: make(map[string]*sync.Mutex),
		logger:  log,
	}
}

// Schedule adds job, replacing any job with the same name
func (s *Scheduler) Schedule(job Job) error {
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[job.Name]; ok {
		s.cron.Remove(id)
		delete(s.entries, job.Name)
	}

	guard, ok := s.running[job.Name]
	if !ok {
		guard = &sync.Mutex{}
		s.running[job.Name] = guard
	}

	run := job.Run
	id, err := s.cron.AddFunc("@every "+job.Every.String(), func() {
		if !guard.TryLock() {
			s.logger.Info().Str("job", job.Name).Msg("Previous run still going, skipping")
			return
		}
		defer guard.Unlock()

		start := time.Now()
		run(s.ctx)
		s.logger.Debug().
			Str("job", job.Name).
			Dur("took", time.Since(start)).
			Msg("Job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	s.entries[job.Name] = id

	s.logger.Info().
		Str("job", job.Name).
		Dur("every", job.Every).
		Msg("Job scheduled")
	return nil
}

// Trigger runs a scheduled job now in the background, subject to the same
// overlap protection as scheduled runs.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry := s.cron.Entry(id)
	if entry.WrappedJob == nil {
		return false
	}
	go entry.WrappedJob.Run()
	return true
}

// Jobs returns the names of scheduled jobs
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
}

// Stop prevents new runs and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
