// Package scheduler runs the periodic agenda refresh on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "agendaaberta/internal/log"
)

// ErrBusy is returned by RunOnce while a previous run is still going.
var ErrBusy = errors.New("scheduler: job already running")

// Job is one refresh pass.
type Job func(ctx context.Context) error

// Status describes the most recent run.
type Status struct {
	LastRun  time.Time
	Duration time.Duration
	Err      error
	Next     time.Time
}

// Scheduler triggers Job on a standard 5-field cron spec. Runs never
// overlap: a tick that fires while a run is in progress is skipped.
type Scheduler struct {
	spec string
	job  Job
	cron *cron.Cron
	now  func() time.Time

	running sync.Mutex

	mu      sync.Mutex
	entry   cron.EntryID
	lastRun time.Time
	lastDur time.Duration
	lastErr error
}

// New validates spec and builds a stopped Scheduler evaluated in loc.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is nil")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron spec %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}

	l := cronLogger{}
	return &Scheduler{
		spec: spec,
		job:  job,
		now:  time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l)),
		),
	}, nil
}

// RunOnce runs the job immediately unless a run is in progress.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.TryLock() {
		appLog.Info("scheduler: skipping run, previous still in progress")
		return ErrBusy
	}
	defer s.running.Unlock()

	started := s.now()
	err := s.job(ctx)
	dur := s.now().Sub(started)

	s.mu.Lock()
	s.lastRun = started
	s.lastDur = dur
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		appLog.Error("scheduler: run failed", err, "elapsed", dur.String())
		return err
	}
	appLog.Info("scheduler: run completed", "elapsed", dur.String())
	return nil
}

// Start registers the job and starts ticking. The scheduler stops when ctx
// is cancelled; Start returns immediately. The returned channel is closed
// once every in-flight run has finished after cancellation.
func (s *Scheduler) Start(ctx context.Context) (<-chan struct{}, error) {
	id, err := s.cron.AddFunc(s.spec, func() {
		_ = s.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: register job: %w", err)
	}
	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()

	s.cron.Start()
	appLog.Info("scheduler started", "spec", s.spec, "next", s.Status().Next.Format(time.RFC3339))

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("scheduler stopped")
		close(done)
	}()
	return done, nil
}

// Status reports the last run and the next planned tick.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		LastRun:  s.lastRun,
		Duration: s.lastDur,
		Err:      s.lastErr,
	}
	id := s.entry
	s.mu.Unlock()

	if id != 0 {
		st.Next = s.cron.Entry(id).Next
	}
	return st
}

// cronLogger routes cron's internal logging to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
