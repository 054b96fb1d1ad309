package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/cache"
	"github.com/gofiber/fiber/v2/log"
)

// JobStatsKey is the Redis hash mirroring per-status transition counters for
// the admin queue monitor. Redis is observational only; the DB job rows are
// the source of truth.
const JobStatsKey = "job_stats"

// HandlerFunc executes one job. A non-nil error charges an attempt.
type HandlerFunc func(ctx context.Context, job *models.Job) error

// Queue dispatches durable jobs to registered handlers with a worker pool.
type Queue struct {
	store          Store
	handlers       map[string]HandlerFunc
	workers        int
	pollInterval   time.Duration
	handlerTimeout time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

// NewQueue creates a job queue over the given store.
func NewQueue(store Store, workers int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	return &Queue{
		store:          store,
		handlers:       make(map[string]HandlerFunc),
		workers:        workers,
		pollInterval:   DefaultPollInterval,
		handlerTimeout: DefaultHandlerTimeout,
		stopCh:         make(chan struct{}),
	}
}

// RegisterHandler binds a job type to its handler. Must be called before
// Start; unknown job types fail their attempts.
func (q *Queue) RegisterHandler(jobType string, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = fn
}

// Start launches the worker pool and the stuck-job reaper.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	q.stopCh = make(chan struct{})
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.wg.Add(1)
	go q.reaper(time.Minute)
}

// Stop signals all workers and the reaper and waits for them to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	// Release before waiting; in-flight workers take the lock for their
	// handler lookup.
	q.mu.Unlock()

	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// EnqueueJob persists a new pending job.
func (q *Queue) EnqueueJob(jobType string, payload interface{}, eventID uint) (*models.Job, error) {
	job, err := NewJob(jobType, payload, eventID)
	if err != nil {
		return nil, err
	}
	if err := q.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.mirrorStat(models.JobStatusPending)
	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// EnqueueWebhookProcess enqueues the processing job derived from an inbound
// webhook event. Satisfies webhook.Enqueuer.
func (q *Queue) EnqueueWebhookProcess(source, eventType string, eventID uint) (*models.Job, error) {
	return q.EnqueueJob(JobTypeWebhookProcess, WebhookProcessPayload{
		WebhookEventID: eventID,
		Source:         source,
		EventType:      eventType,
	}, eventID)
}

// worker repeatedly claims one eligible job, runs it, and applies the state
// transition. On an empty queue it sleeps a poll interval.
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
			job, err := q.store.ClaimNext(time.Now())
			if err != nil {
				log.Errorf("[JobQueue] Worker %d: claim error: %v", id, err)
				q.sleep()
				continue
			}
			if job == nil {
				q.sleep()
				continue
			}

			log.Infof("[JobQueue] Worker %d processing job %s (Type: %s, Attempt: %d/%d)",
				id, job.ID, job.Type, job.Attempts+1, job.MaxAttempts)
			q.processJob(job)
		}
	}
}

func (q *Queue) sleep() {
	select {
	case <-q.stopCh:
	case <-time.After(q.pollInterval):
	}
}

// processJob runs the handler for a claimed job under a timeout and writes
// the resulting transition back to the store.
func (q *Queue) processJob(job *models.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.handlerTimeout)
	defer cancel()

	q.mu.Lock()
	handler, ok := q.handlers[job.Type]
	q.mu.Unlock()

	var err error
	if !ok {
		err = fmt.Errorf("unknown job type: %s", job.Type)
	} else {
		err = handler(ctx, job)
	}

	if err != nil {
		log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
		retryAt := time.Now().Add(RetryBackoff(job.Attempts + 1))
		if serr := q.store.MarkFailedAttempt(job, err.Error(), retryAt); serr != nil {
			log.Errorf("[JobQueue] Failed to record failure of job %s: %v", job.ID, serr)
			return
		}
		if job.Status == models.JobStatusFailed {
			log.Errorf("[JobQueue] Job %s permanently failed after %d attempts", job.ID, job.Attempts)
			q.mirrorStat(models.JobStatusFailed)
		} else {
			log.Infof("[JobQueue] Job %s re-queued for retry (%d/%d) at %s",
				job.ID, job.Attempts, job.MaxAttempts, retryAt.Format(time.RFC3339))
		}
		return
	}

	if serr := q.store.MarkCompleted(job); serr != nil {
		log.Errorf("[JobQueue] Failed to record completion of job %s: %v", job.ID, serr)
		return
	}
	q.mirrorStat(models.JobStatusCompleted)
	log.Infof("[JobQueue] Job %s completed successfully", job.ID)
}

// reaper periodically returns jobs stuck in processing past the staleness
// threshold to pending. Workers may die mid-job; this is the recovery path.
func (q *Queue) reaper(interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Reaper running (interval=%s)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			log.Info("[JobQueue] Reaper stopping")
			return
		case <-ticker.C:
			staleness := 10 * time.Minute
			if settings := models.GetAppSettings(); settings != nil {
				staleness = time.Duration(settings.GetJobStalenessMinutes()) * time.Minute
			}
			n, err := q.store.RequeueStale(time.Now().Add(-staleness))
			if err != nil {
				log.Errorf("[JobQueue] Reaper error: %v", err)
				continue
			}
			if n > 0 {
				log.Warnf("[JobQueue] Reaper recovered %d stuck job(s)", n)
			}
		}
	}
}

// mirrorStat bumps the Redis transition counter for the admin monitor.
// Best-effort: a dead cache never blocks job processing.
func (q *Queue) mirrorStat(status models.JobStatus) {
	if err := cache.GetClient().HIncrBy(context.Background(), JobStatsKey, string(status), 1).Err(); err != nil {
		log.Debugf("[JobQueue] Failed to mirror job stats: %v", err)
	}
}
