package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	customlog "github.com/open-teleop/cleaner/pkg/log"
)

var (
	ErrPoolStopped = errors.New("job pool is not running")
	ErrQueueFull   = errors.New("job queue is full")
)

// Job is one unit of blocking work. Run must return promptly once ctx is
// done.
type Job struct {
	ID     string
	Name   string
	Queued time.Time
	Run    func(ctx context.Context) error
}

// JobResult is the outcome of one Job.
type JobResult struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Err      error     `json:"-"`
	Error    string    `json:"error,omitempty"`
}

// ResultHandler is a function that handles finished jobs
type ResultHandler func(result *JobResult)

// JobPool runs queued jobs on a fixed set of workers. With one worker jobs
// run strictly in submission order.
type JobPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	jobQueue      chan *Job
	running       bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	resultHandler ResultHandler
	queueSize     int
	metrics       *PoolMetrics

	ctx     context.Context
	cancel  context.CancelFunc
	current map[int]*activeJob
}

type activeJob struct {
	job     *Job
	started time.Time
	cancel  context.CancelFunc
}

// PoolMetrics tracks metrics for a job pool
type PoolMetrics struct {
	ProcessedCount    int64
	ErrorCount        int64
	QueuedCount       int64
	LastProcessedTime int64
	ProcessingTimeAvg int64 // in milliseconds
	ProcessingTimeMax int64 // in milliseconds
	mu                sync.Mutex
}

// ActiveJob describes a job a worker is executing.
type ActiveJob struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Started time.Time `json:"started"`
}

// NewJobPool creates a new job pool
func NewJobPool(name string, workerCount int, queueSize int, logger customlog.Logger) *JobPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &JobPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger,
		jobQueue:    make(chan *Job, queueSize),
		metrics:     &PoolMetrics{},
		current:     make(map[int]*activeJob),
	}
}

// SetResultHandler sets the result handler function
func (p *JobPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// Submit queues job without blocking.
func (p *JobPool) Submit(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, rejecting job %s", p.name, job.Name)
		return ErrPoolStopped
	}
	if job.Queued.IsZero() {
		job.Queued = time.Now()
	}

	select {
	case p.jobQueue <- job:
		p.metrics.mu.Lock()
		p.metrics.QueuedCount++
		p.metrics.mu.Unlock()
		p.logger.Debugf("%s pool queued job %s (%s)", p.name, job.ID, job.Name)
		return nil
	default:
		p.logger.Warnf("%s pool queue is full, rejecting job %s", p.name, job.Name)
		return ErrQueueFull
	}
}

// Start starts the pool workers
func (p *JobPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels running jobs, drops queued ones and waits for the workers.
func (p *JobPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	close(p.jobQueue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

// CancelCurrent cancels every running job. Queued jobs still run. It reports
// whether anything was running.
func (p *JobPool) CancelCurrent() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.current {
		p.logger.Infof("%s pool cancelling job %s (%s)", p.name, a.job.ID, a.job.Name)
		a.cancel()
	}
	return len(p.current) > 0
}

// Active lists the jobs being executed.
func (p *JobPool) Active() []ActiveJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ActiveJob, 0, len(p.current))
	for _, a := range p.current {
		out = append(out, ActiveJob{ID: a.job.ID, Name: a.job.Name, Started: a.started})
	}
	return out
}

// Busy reports whether a job is running or waiting.
func (p *JobPool) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.current) > 0 || len(p.jobQueue) > 0
}

func (p *JobPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for job := range p.jobQueue {
		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			p.logger.Debugf("%s pool dropping job %s on shutdown", p.name, job.ID)
			continue
		}
		ctx, cancel := context.WithCancel(p.ctx)
		startTime := time.Now()
		p.current[id] = &activeJob{job: job, started: startTime, cancel: cancel}
		resultHandler := p.resultHandler
		p.mu.Unlock()

		p.logger.Debugf("%s pool worker %d running job %s (%s)", p.name, id, job.ID, job.Name)
		err := runJob(ctx, job)
		cancel()

		p.mu.Lock()
		delete(p.current, id)
		p.mu.Unlock()

		finished := time.Now()
		p.record(finished.Sub(startTime).Milliseconds(), err)

		result := &JobResult{
			ID:       job.ID,
			Name:     job.Name,
			Started:  startTime,
			Finished: finished,
			Err:      err,
		}
		if err != nil {
			result.Error = err.Error()
		}
		if resultHandler != nil {
			resultHandler(result)
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

func runJob(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

func (p *JobPool) record(elapsedMs int64, err error) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.ProcessedCount++
	p.metrics.LastProcessedTime = time.Now().UnixNano()
	if p.metrics.ProcessingTimeAvg == 0 {
		p.metrics.ProcessingTimeAvg = elapsedMs
	} else {
		// Simple moving average
		p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + elapsedMs) / 2
	}
	if elapsedMs > p.metrics.ProcessingTimeMax {
		p.metrics.ProcessingTimeMax = elapsedMs
	}
	if err != nil {
		p.metrics.ErrorCount++
	}
}

// GetMetrics returns a copy of the current metrics
func (p *JobPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

func (p *JobPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, avg_time=%dms, max_time=%dms",
		p.name, metrics.ProcessedCount, metrics.ErrorCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *JobPool) GetName() string {
	return p.name
}

// GetQueueLength returns the number of jobs waiting
func (p *JobPool) GetQueueLength() int {
	return len(p.jobQueue)
}

// GetQueueCapacity returns the capacity of the job queue
func (p *JobPool) GetQueueCapacity() int {
	return p.queueSize
}
