package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"
)

// Scheduler runs BeigeBox's background maintenance jobs (session-cache
// sweep, centroid rebuild, and any custom jobs an operator registers) on
// standard five-field cron expressions, recording each run in an
// ExecutionStore.
type Scheduler struct {
	mu             sync.Mutex
	cron           *robfigcron.Cron
	jobs           map[string]*Job
	handlers       map[string]Handler
	entryIDs       map[string]robfigcron.EntryID
	logger         *slog.Logger
	executionStore ExecutionStore
	now            func() time.Time
	started        bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExecutionStore sets where job run history is recorded.
func WithExecutionStore(store ExecutionStore) Option {
	return func(s *Scheduler) {
		if store != nil {
			s.executionStore = store
		}
	}
}

// WithNow overrides the clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates an unstarted scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:           robfigcron.New(),
		jobs:           make(map[string]*Job),
		handlers:       make(map[string]Handler),
		entryIDs:       make(map[string]robfigcron.EntryID),
		logger:         slog.Default().With("component", "cron"),
		executionStore: NewMemoryExecutionStore(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job with the given cron expression and handler. The job
// starts running on the next matching tick once Start has been called (or
// immediately if the scheduler is already running).
func (s *Scheduler) Register(jobType JobType, name, cronExpr string, handler Handler) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     jobType,
		Enabled:  true,
		CronExpr: cronExpr,
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.runJob(context.Background(), job, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("registering job %q: %w", name, err)
	}

	s.jobs[job.ID] = job
	s.handlers[job.ID] = handler
	s.entryIDs[job.ID] = entryID

	if entry := s.cron.Entry(entryID); entry.ID != 0 || !entry.Next.IsZero() {
		job.NextRun = entry.Next
	}

	s.logger.Info("registered cron job", "id", job.ID, "name", name, "type", jobType, "expr", cronExpr)
	return job, nil
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes a job so it no longer runs.
func (s *Scheduler) Unregister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.entryIDs[id]
	if !ok {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.entryIDs, id)
	delete(s.jobs, id)
	delete(s.handlers, id)
	return true
}

// Jobs returns every registered job.
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		jobs = append(jobs, &cp)
	}
	return jobs
}

// RunNow triggers a job immediately, outside its schedule. Useful for the
// CLI's "centroids build" subcommand running the rebuild job on demand.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	handler := s.handlers[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", id)
	}
	s.runJob(ctx, job, handler)
	if job.LastError != "" {
		return fmt.Errorf("job %q failed: %s", job.Name, job.LastError)
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job *Job, handler Handler) {
	start := s.now()
	exec := &JobExecution{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Status:    ExecutionRunning,
		StartedAt: start,
	}
	_ = s.executionStore.Create(ctx, exec)

	err := handler.Handle(ctx, job)

	finished := s.now()
	exec.CompletedAt = finished
	exec.Duration = finished.Sub(start)

	s.mu.Lock()
	job.LastRun = finished
	if err != nil {
		job.LastError = err.Error()
		exec.Status = ExecutionFailed
		exec.Error = err.Error()
		s.logger.Warn("cron job failed", "job", job.Name, "error", err)
	} else {
		job.LastError = ""
		exec.Status = ExecutionSucceeded
	}
	if entryID, ok := s.entryIDs[job.ID]; ok {
		job.NextRun = s.cron.Entry(entryID).Next
	}
	s.mu.Unlock()

	_ = s.executionStore.Update(ctx, exec)
}
