// Package scheduler runs periodic maintenance jobs next to the bot:
// Badger value log compaction and exporting store gauges.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Error     error
}

// JobStatus describes a registered job.
type JobStatus struct {
	Name      string
	Interval  time.Duration
	NextRun   time.Time
	RunCount  int64
	FailCount int64
	LastRun   *JobResult
}

var (
	ErrNilJob           = errors.New("scheduler: job is nil")
	ErrInvalidInterval  = errors.New("scheduler: interval must be positive")
	ErrJobAlreadyExists = errors.New("scheduler: job already registered")
	ErrJobNotFound      = errors.New("scheduler: job not found")
	ErrAlreadyRunning   = errors.New("scheduler: already running")
	ErrNotRunning       = errors.New("scheduler: not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *slog.Logger

	// Tick is how often due jobs are checked.
	Tick time.Duration

	// OnJobComplete is called after every run.
	OnJobComplete func(result JobResult)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Tick: time.Second}
}

type scheduledJob struct {
	job       Job
	interval  time.Duration
	nextRun   time.Time
	running   bool
	runCount  int64
	failCount int64
	lastRun   *JobResult
}

// Scheduler runs registered jobs at fixed intervals. A job never overlaps
// with itself.
type Scheduler struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Scheduler.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Tick <= 0 {
		config.Tick = DefaultConfig().Tick
	}
	return &Scheduler{
		config: config,
		logger: config.Logger.With(logger.Component("scheduler")),
		now:    time.Now,
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register adds a job that first runs one interval from now.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	if job == nil {
		return ErrNilJob
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	s.jobs[name] = &scheduledJob{
		job:      job,
		interval: interval,
		nextRun:  s.now().Add(interval),
	}

	s.logger.Info("job registered", slog.String("job", name), slog.Duration("interval", interval))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue starts every due job that is not already running.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sj := range s.jobs {
		if sj.running || now.Before(sj.nextRun) {
			continue
		}
		sj.running = true
		sj.nextRun = now.Add(sj.interval)
		s.wg.Add(1)
		go s.run(ctx, sj)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) run(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()
	result := s.execute(ctx, sj.job)

	s.mu.Lock()
	sj.running = false
	sj.runCount++
	if result.Error != nil {
		sj.failCount++
	}
	sj.lastRun = &result
	s.mu.Unlock()

	if s.config.OnJobComplete != nil {
		s.config.OnJobComplete(result)
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) (result JobResult) {
	result = JobResult{JobName: job.Name(), StartedAt: s.now()}
	log := s.logger.With(slog.String("job", result.JobName))

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("job panicked: %v", r)
		}
		result.Duration = time.Since(result.StartedAt)
		if result.Error != nil {
			log.ErrorContext(ctx, "job failed", logger.Latency(result.Duration), logger.Err(result.Error))
			return
		}
		log.DebugContext(ctx, "job completed", logger.Latency(result.Duration))
	}()

	result.Error = job.Run(ctx)
	return result
}

// RunNow executes a job immediately and synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, sj.job), nil
}

// Status returns every job sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, sj := range s.jobs {
		st := JobStatus{
			Name:      name,
			Interval:  sj.interval,
			NextRun:   sj.nextRun,
			RunCount:  sj.runCount,
			FailCount: sj.failCount,
		}
		if sj.lastRun != nil {
			last := *sj.lastRun
			st.LastRun = &last
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
