// Package scheduler runs the club's cron jobs on gocron and keeps a record of
// each job's latest run for the admin API.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
	ErrDuplicateJob   = errors.New("job already registered")
)

const defaultJobTimeout = 5 * time.Minute

// Job describes one recurring task. Task receives a context carrying the
// job's logger and bounded by Timeout.
type Job struct {
	Name    string
	Cron    string
	Timeout time.Duration
	// Overlap, when set, runs the job in singleton mode with this limit.
	Overlap gocron.LimitMode
	Task    func(ctx context.Context) error
}

// JobStatus is the latest known state of a registered job.
type JobStatus struct {
	Name      string     `json:"name"`
	Cron      string     `json:"cron"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	Running   bool       `json:"running"`
	LastStart *time.Time `json:"lastStart,omitempty"`
	LastEnd   *time.Time `json:"lastEnd,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
}

type Service struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error

	mu     sync.Mutex
	status map[string]*JobStatus
	jobs   map[string]gocron.Job
}

// New builds a scheduler whose cron expressions are read in loc.
func New(loc *time.Location) (*Service, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{status: map[string]*JobStatus{}, jobs: map[string]gocron.Job{}}
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Job panicked")
					s.finish(jobName, fmt.Errorf("panic: %v", recoverData))
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.scheduler = sched
	log.Info().Stringer("timezone", loc).Msg("Scheduler initialized")
	return s, nil
}

func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Start called on nil scheduler")
		return
	}
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop waits for running jobs and prevents new ones from starting.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping job scheduler")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// Add registers job. Names are unique within a scheduler.
func (s *Service) Add(job Job) error {
	if s == nil {
		return ErrNotInitialized
	}
	if strings.TrimSpace(job.Name) == "" {
		return ErrEmptyJobName
	}
	if strings.TrimSpace(job.Cron) == "" {
		return ErrEmptyCronExpr
	}
	if job.Task == nil {
		return fmt.Errorf("job %s: task is required", job.Name)
	}
	if job.Timeout <= 0 {
		job.Timeout = defaultJobTimeout
	}

	s.mu.Lock()
	_, exists := s.status[job.Name]
	s.mu.Unlock()
	if exists {
		return fmt.Errorf("%s: %w", job.Name, ErrDuplicateJob)
	}

	jobLogger := log.With().Str("job_name", job.Name).Str("cron", job.Cron).Logger()
	run := func() {
		s.begin(job.Name)
		ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		jobLogger.Debug().Msg("Job run starting")
		err := job.Task(ctx)
		s.finish(job.Name, err)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Job run failed")
			return
		}
		jobLogger.Debug().Msg("Job run finished")
	}

	opts := []gocron.JobOption{gocron.WithName(job.Name)}
	if job.Overlap != 0 {
		opts = append(opts, gocron.WithSingletonMode(job.Overlap))
	}
	registered, err := s.scheduler.NewJob(gocron.CronJob(job.Cron, false), gocron.NewTask(run), opts...)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Could not register job")
		return fmt.Errorf("add job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	s.status[job.Name] = &JobStatus{Name: job.Name, Cron: job.Cron}
	s.jobs[job.Name] = registered
	s.mu.Unlock()
	jobLogger.Info().Msg("Job registered")
	return nil
}

// RunNow triggers a registered job outside its schedule.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q is not registered", name)
	}
	return job.RunNow()
}

func (s *Service) begin(name string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[name]; ok {
		st.Running = true
		st.LastStart = &now
	}
}

func (s *Service) finish(name string, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	if !ok {
		return
	}
	st.Running = false
	st.LastEnd = &now
	st.Runs++
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
}

// Status reports every registered job, sorted by name.
func (s *Service) Status() []JobStatus {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	out := make([]JobStatus, 0, len(s.status))
	jobs := make([]gocron.Job, 0, len(s.status))
	for name, st := range s.status {
		out = append(out, *st)
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	// NextRun asks the scheduler goroutine, so it runs without the lock.
	for i, job := range jobs {
		if next, err := job.NextRun(); err == nil && !next.IsZero() {
			out[i].NextRun = &next
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
