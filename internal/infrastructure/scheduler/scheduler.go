// Package scheduler runs periodic background jobs such as batch expiry and
// the stock ledger audit.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/posting/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

// Config holds scheduler configuration
type Config struct {
	// CheckInterval is how often schedules are evaluated
	CheckInterval time.Duration
	// JobTimeout bounds a single run
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Minute,
		JobTimeout:    30 * time.Minute,
	}
}

// JobStatus describes the last run of a job
type JobStatus struct {
	Name        string        `json:"name"`
	Schedule    string        `json:"schedule"`
	Running     bool          `json:"running"`
	Runs        int64         `json:"runs"`
	Failures    int64         `json:"failures"`
	LastRunAt   *time.Time    `json:"last_run_at,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	LastElapsed time.Duration `json:"last_elapsed"`
}

type job struct {
	name     string
	schedule Schedule
	fn       JobFunc

	running  atomic.Bool
	runs     atomic.Int64
	failures atomic.Int64

	mu          sync.Mutex
	lastFired   time.Time
	lastRunAt   *time.Time
	lastError   string
	lastElapsed time.Duration
}

// Scheduler fires registered jobs on their schedules. A job never overlaps
// with itself; a tick that finds it still running is skipped.
type Scheduler struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	jobs      map[string]*job
	cancel    context.CancelFunc
	runCtx    context.Context
	wg        sync.WaitGroup
	isRunning bool
}

// New creates a scheduler
func New(config Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	return &Scheduler{
		config: config,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*job),
	}
}

// Register adds a job under a schedule expression
func (s *Scheduler) Register(name, expr string, fn JobFunc) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	s.jobs[name] = &job{name: name, schedule: schedule, fn: fn}
	s.logger.Info("Scheduled job registered",
		zap.String("job", name),
		zap.String("schedule", schedule.String()),
	)
	return nil
}

// Start starts the scheduler loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.runCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.runLoop(s.runCtx)

	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop stops the loop and waits for running jobs
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunNow runs a job synchronously outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !j.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRunning, name)
	}
	return s.execute(ctx, j)
}

// Status returns the status of every job sorted by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:        j.name,
			Schedule:    j.schedule.String(),
			Running:     j.running.Load(),
			Runs:        j.runs.Load(),
			Failures:    j.failures.Load(),
			LastRunAt:   j.lastRunAt,
			LastError:   j.lastError,
			LastElapsed: j.lastElapsed,
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, s.now())
		}
	}
}

// tick starts every job due at now
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		j.mu.Lock()
		due := j.schedule.Due(now, j.lastFired)
		if due {
			j.lastFired = now
		}
		j.mu.Unlock()
		if !due {
			continue
		}
		if !j.running.CompareAndSwap(false, true) {
			s.logger.Warn("Skipping scheduled job, previous run still in progress", zap.String("job", j.name))
			continue
		}
		s.wg.Add(1)
		go func(j *job) {
			defer s.wg.Done()
			_ = s.execute(ctx, j)
		}(j)
	}
}

// execute runs j under the job timeout. The caller must have set j.running.
func (s *Scheduler) execute(ctx context.Context, j *job) (err error) {
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "job."+j.name)
	defer span.End()

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		elapsed := time.Since(start)
		j.runs.Add(1)
		j.mu.Lock()
		j.lastRunAt = &start
		j.lastElapsed = elapsed
		j.lastError = ""
		if err != nil {
			j.lastError = err.Error()
		}
		j.mu.Unlock()

		if err != nil {
			j.failures.Add(1)
			telemetry.RecordError(span, err)
			s.logger.Error("Scheduled job failed",
				zap.String("job", j.name),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			return
		}
		telemetry.SetOK(span)
		s.logger.Info("Scheduled job completed",
			zap.String("job", j.name),
			zap.Duration("elapsed", elapsed),
		)
	}()

	return j.fn(ctx)
}
