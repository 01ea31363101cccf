package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"community-subscription-bot/internal/infra/logging"
)

// JobFunc is one scheduled run. The context carries a per-run timeout and trace id.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron specs in a fixed location. A run that is
// still going when its next tick fires is skipped rather than overlapped.
type Scheduler struct {
	cron       *cron.Cron
	runTimeout time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	names  map[string]cron.EntryID
}

// NewScheduler uses the standard 5-field cron syntax. runTimeout <= 0 means 10 minutes.
func NewScheduler(loc *time.Location, runTimeout time.Duration, logger *zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	l := logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runTimeout: runTimeout,
		log:        l,
		ctx:        ctx,
		cancel:     cancel,
		names:      map[string]cron.EntryID{},
	}
}

// AddCron registers job under a cron spec such as "0 0 * * *".
func (s *Scheduler) AddCron(name, spec string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.names[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	s.names[name] = id
	return nil
}

// AddInterval registers job to run every interval, first run one interval after Start.
func (s *Scheduler) AddInterval(name string, every time.Duration, job JobFunc) error {
	if every <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return s.AddCron(name, fmt.Sprintf("@every %s", every), job)
}

// Start begins dispatching. Cancelling parent cancels in-flight runs.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(parent)
	s.mu.Unlock()
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop prevents new runs and waits for running ones to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	<-done.Done()
	cancel()
	s.log.Info().Msg("scheduler stopped")
}

// Next reports when the named job fires next; zero if unknown or not started.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.names[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) run(name string, job JobFunc) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	traceID := logging.NewTraceID()
	ctx, cancel := context.WithTimeout(logging.WithTraceID(parent, traceID), s.runTimeout)
	defer cancel()

	start := time.Now()
	log := s.log.With().Str("job", name).Str("trace_id", traceID).Logger()
	if err := job(ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("job finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
