package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/certscope/internal/analysis"
	"github.com/khanhnv2901/certscope/internal/api/middleware"
	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/target"
)

// Job statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobError   = "error"
)

// Job is an analysis running in the background.
type Job struct {
	ID            string                 `json:"id"`
	Domain        string                 `json:"domain"`
	Status        string                 `json:"status"`
	Attempts      int                    `json:"attempts"`
	GradingStatus string                 `json:"grading_status,omitempty"`
	SourcesDone   int                    `json:"sources_done"`
	CreatedAt     time.Time              `json:"created_at"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	FinishedAt    *time.Time             `json:"finished_at,omitempty"`
	Result        *report.AnalysisResult `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

func (j *Job) finished() bool {
	return j.Status == JobDone || j.Status == JobError
}

type JobRequest struct {
	Domain string `json:"domain"`
}

// JobManager keeps background analysis jobs in memory and broadcasts every
// change to its subscribers. Completed jobs beyond maxJobs are evicted
// oldest first.
type JobManager struct {
	analyzer Analyzer
	baseCtx  context.Context
	logger   *zap.Logger

	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int
	wg          sync.WaitGroup
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewJobManager returns a manager running analyses through analyzer. Jobs
// run under ctx, which is independent from the request that started them.
func NewJobManager(ctx context.Context, analyzer Analyzer, logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &JobManager{
		analyzer:    analyzer,
		baseCtx:     ctx,
		logger:      logger,
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     1000,
		stop:        make(chan struct{}),
	}
	go m.cleanupLoop(5 * time.Minute)
	return m
}

// StartJob validates the domain and queues the analysis.
func (m *JobManager) StartJob(ctx context.Context, req JobRequest) (*Job, error) {
	domain, err := target.Parse(req.Domain)
	if err != nil {
		return nil, err
	}

	job := m.CreateJob(domain.Name)
	logger := m.logger.With(zap.String("job_id", job.ID), zap.String("domain", domain.Name))
	logger.Info("job queued", zap.String("request_id", middleware.GetRequestID(ctx)))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(job.ID, domain.Name, logger)
	}()
	return job, nil
}

func (m *JobManager) run(id, domain string, logger *zap.Logger) {
	m.UpdateJob(id, func(j *Job) {
		now := time.Now().UTC()
		j.Status = JobRunning
		j.StartedAt = &now
	})

	res, err := m.analyzer.Analyze(m.baseCtx, analysis.Request{
		Domain:    domain,
		RequestID: id,
		Logger:    logger,
		Progress: func(p analysis.Progress) {
			m.UpdateJob(id, func(j *Job) {
				if j.finished() {
					return
				}
				if p.Done {
					j.SourcesDone++
				}
				if p.Source == analysis.SourceGrading && p.Attempt > 0 {
					j.Attempts = p.Attempt
					if p.Status != "" {
						j.GradingStatus = p.Status
					}
				}
			})
		},
	})

	m.UpdateJob(id, func(j *Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		if err != nil {
			j.Status = JobError
			j.Error = err.Error()
			return
		}
		j.Status = JobDone
		j.Result = res
	})
	if err != nil {
		logger.Warn("job failed", zap.Error(err))
		return
	}
	logger.Info("job completed", zap.String("overall_grade", res.Summary.OverallGrade))
}

func (m *JobManager) CreateJob(domain string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &Job{
		ID:        uuid.NewString(),
		Domain:    domain,
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.broadcast(*job)
	copied := *job
	return &copied
}

func (m *JobManager) UpdateJob(id string, update func(*Job)) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	update(job)
	m.broadcast(*job)
	copied := *job
	return &copied
}

var errJobNotFound = errors.New("job not found")

func (m *JobManager) GetJob(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, errJobNotFound
}

// ListJobs returns up to limit jobs, newest first.
func (m *JobManager) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.jobs) {
		limit = len(m.jobs)
	}
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs[:limit], nil
}

func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 32)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// broadcast never blocks; a subscriber with a full buffer misses the update.
func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			m.logger.Debug("dropped job update for slow subscriber", zap.String("job_id", job.ID))
		}
	}
}

// SetMaxJobs configures the maximum number of jobs to retain in memory
func (m *JobManager) SetMaxJobs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxJobs = max
	}
}

// Wait blocks until every started job has finished.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// Close stops the cleanup loop. Running jobs end with the base context.
func (m *JobManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *JobManager) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evict()
		}
	}
}

// evict removes the oldest finished jobs until the table fits maxJobs.
func (m *JobManager) evict() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) <= m.maxJobs {
		return 0
	}

	type jobWithTime struct {
		id   string
		time time.Time
	}
	var completed []jobWithTime
	for id, job := range m.jobs {
		if !job.finished() {
			continue
		}
		finishTime := job.CreatedAt
		if job.FinishedAt != nil {
			finishTime = *job.FinishedAt
		}
		completed = append(completed, jobWithTime{id: id, time: finishTime})
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].time.Before(completed[j].time)
	})

	toRemove := min(len(m.jobs)-m.maxJobs, len(completed))
	for i := 0; i < toRemove; i++ {
		delete(m.jobs, completed[i].id)
	}
	return toRemove
}
