package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
	"github.com/nekogravitycat/blog-backend/internal/post"
)

// Runner performs one generation.
type Runner interface {
	GenerateOne(ctx context.Context) (*post.Post, error)
}

// Scheduler runs generations on a cron schedule. A run that is still going
// when the next one is due makes that one skip, and a panicking run is
// logged without taking the process down.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	log     *slog.Logger
	entry   cron.EntryID
}

// NewScheduler parses spec (standard five field cron syntax) and prepares the
// job. Nothing runs until Start.
func NewScheduler(spec string, runner Runner, timeout time.Duration, log *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log.With("component", "scheduler")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		timeout: timeout,
		log:     cl.log,
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid generation schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("post generation scheduled", "next_run", s.Next())
}

// Next returns the time of the next run, or zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop prevents further runs and waits for a running one to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop in time: %w", ctx.Err())
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, s.log)

	// Failures are logged by the runner.
	if _, err := s.runner.GenerateOne(ctx); errors.Is(err, ErrInProgress) {
		s.log.Info("skipping scheduled generation, another one is running")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
