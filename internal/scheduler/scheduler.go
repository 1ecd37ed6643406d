// Package scheduler owns the crawl jobs and the timing loop. One cron entry
// driven by the schedule policy fires a round; a round runs every enabled
// job, isolating per-job failures so a broken source never takes the loop
// down.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/news-crawler/internal/schedule"
	"github.com/news-crawler/pkg/logger"
)

// FatalError indicates inconsistent scheduling state. It is only ever raised
// before the loop starts and aborts the process.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return "scheduler: " + e.Reason
}

// Scheduler runs rounds of crawl jobs at the times the policy dictates
type Scheduler struct {
	policy *schedule.Policy
	jobs   []*Job
	log    *logger.Logger
}

// New creates a scheduler. It fails when no job is enabled or when the
// policy cannot produce a future trigger, so misconfiguration surfaces
// before the loop starts.
func New(policy *schedule.Policy, jobs []*Job, log *logger.Logger) (*Scheduler, error) {
	enabled := 0
	for _, j := range jobs {
		if j.Enabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, &FatalError{Reason: "no enabled jobs"}
	}

	now := time.Now()
	if next := policy.Next(now); !next.After(now) {
		return nil, &FatalError{Reason: fmt.Sprintf("schedule policy produced no future trigger (got %s)", next)}
	}

	return &Scheduler{
		policy: policy,
		jobs:   jobs,
		log:    log.WithComponent("scheduler"),
	}, nil
}

// Start runs the schedule loop until ctx is cancelled. When the policy asks
// for an immediate run, one full round executes before the first wait. Stop
// is cooperative: an in-flight round finishes before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.policy.RunImmediately() {
		s.log.Info().Msg("Running initial round")
		s.RunRound(ctx)
	}

	c := cron.New(cron.WithLogger(cronLogger{s.log}))
	c.Schedule(s.policy, cron.FuncJob(func() {
		s.RunRound(ctx)
	}))
	c.Start()

	s.log.Info().
		Str("schedule", s.policy.Describe()).
		Time("next_run", s.policy.Next(time.Now())).
		Msg("Scheduler started")

	<-ctx.Done()

	s.log.Info().Msg("Stopping scheduler")
	stopped := c.Stop()
	<-stopped.Done() // wait for the in-flight round, no mid-round preemption
	return nil
}

// RunRound executes all enabled jobs once, concurrently. Results come back
// in job registration order; disabled jobs are skipped without touching
// their crawler.
func (s *Scheduler) RunRound(ctx context.Context) []RunResult {
	s.log.Info().Msg("Starting crawl round")
	start := time.Now()

	results := make([]RunResult, len(s.jobs))
	g, gctx := errgroup.WithContext(ctx)

	for i, job := range s.jobs {
		if !job.Enabled() {
			s.log.Debug().Str("job", job.Name()).Msg("Job disabled, skipping")
			continue
		}
		i, job := i, job
		g.Go(func() error {
			results[i] = job.Run(gctx)
			return nil
		})
	}
	_ = g.Wait() // job errors live in their RunResult, never here

	succeeded := 0
	for _, r := range results {
		if r.Job == "" {
			continue // disabled slot
		}
		if r.Err != nil {
			s.log.Error().
				Err(r.Err).
				Str("job", r.Job).
				Int("fetched", r.Fetched).
				Int("submitted", r.Submitted).
				Msg("Job failed")
			continue
		}
		succeeded++
		s.log.Info().
			Str("job", r.Job).
			Int("fetched", r.Fetched).
			Int("submitted", r.Submitted).
			Dur("duration", r.Duration).
			Msg("Job completed")
	}

	s.log.Info().
		Int("succeeded", succeeded).
		Dur("duration", time.Since(start)).
		Time("next_run", s.policy.Next(time.Now())).
		Msg("Round completed")

	return results
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}
