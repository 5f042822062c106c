package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"applyflow/internal/common/config"
	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/common/logger"
	"applyflow/internal/common/metrics"
	"applyflow/internal/models"
)

// brokerFaultLogInterval throttles broker-fault logging during extended
// outages so the poll path does not storm the logs every 5 seconds.
const brokerFaultLogInterval = 60 * time.Second

// Service owns the application-job lifecycle over the Store. Broker faults
// never escape GetNextJob or Stats; callers on the poll path always get a
// usable answer.
type Service struct {
	store *Store
	log   logger.Logger

	enqueueRetries int
	enqueueBackoff time.Duration

	mu             sync.Mutex
	lastFaultLogAt time.Time
}

func NewService(store *Store, cfg config.QueueConfig, log logger.Logger) *Service {
	return &Service{
		store:          store,
		log:            log,
		enqueueRetries: cfg.EnqueueRetries,
		enqueueBackoff: config.GetDuration(cfg.EnqueueBackoff),
	}
}

// AddApplicationJob enqueues the job, retrying at the broker level with
// exponential backoff. A final failure is raised to the caller, which decides
// whether to roll back the application record.
func (s *Service) AddApplicationJob(ctx context.Context, job models.ApplicationJob) error {
	var lastErr error
	delay := s.enqueueBackoff

	for attempt := 1; attempt <= s.enqueueRetries; attempt++ {
		entryID, err := s.store.Enqueue(ctx, job)
		if err == nil {
			s.log.Info("application job enqueued", map[string]interface{}{
				"applicationId": job.ApplicationID,
				"platform":      job.Platform,
				"entryId":       entryID,
				"attempt":       attempt,
			})
			metrics.QueueJobsEnqueued.WithLabelValues(job.Platform).Inc()
			return nil
		}

		lastErr = err
		s.log.Warn("enqueue attempt failed", map[string]interface{}{
			"applicationId": job.ApplicationID,
			"attempt":       attempt,
			"error":         err.Error(),
		})

		if attempt < s.enqueueRetries {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return stderrors.NewEnqueueFailedError(ctx.Err())
			}
			delay *= 2
		}
	}

	metrics.QueueBrokerErrors.WithLabelValues("enqueue").Inc()
	return stderrors.NewEnqueueFailedError(lastErr)
}

// GetNextJob claims the oldest waiting job: peek, then remove. Any broker
// fault degrades to "no job" so the worker cannot distinguish an empty queue
// from a broken broker; both come back as nil.
//
// Removal failure is logged and the job is still returned. A duplicate
// delivery is preferable to losing an in-flight job.
func (s *Service) GetNextJob(ctx context.Context) (*models.ApplicationJob, error) {
	entries, err := s.store.PeekOldest(ctx, 1)
	if err != nil {
		s.logBrokerFault("peek", err)
		metrics.QueueBrokerErrors.WithLabelValues("peek").Inc()
		return nil, nil
	}
	if len(entries) == 0 {
		metrics.QueueEmptyPolls.Inc()
		return nil, nil
	}

	entry := entries[0]
	if err := s.store.Remove(ctx, entry); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			// Lost the race to a concurrent claim; this poll gets nothing.
			return nil, nil
		}
		s.log.Warn("failed to remove claimed entry, returning job anyway", map[string]interface{}{
			"entryId":       entry.ID,
			"applicationId": entry.Job.ApplicationID,
			"error":         err.Error(),
		})
	}

	if err := s.store.IncrActive(ctx); err != nil {
		s.logBrokerFault("incr-active", err)
	}

	job := entry.Job
	job.EntryID = entry.ID
	metrics.QueueJobsClaimed.Inc()
	s.log.Info("job claimed", map[string]interface{}{
		"entryId":       entry.ID,
		"applicationId": job.ApplicationID,
		"platform":      job.Platform,
	})
	return &job, nil
}

// Stats returns advisory queue counters. On broker failure it returns
// all-zero stats rather than an error; this endpoint is observability only.
func (s *Service) Stats(ctx context.Context) models.QueueStats {
	stats, err := s.store.Counts(ctx)
	if err != nil {
		s.logBrokerFault("counts", err)
		metrics.QueueBrokerErrors.WithLabelValues("counts").Inc()
		return models.QueueStats{}
	}
	metrics.QueueDepth.Set(float64(stats.Waiting))
	return stats
}

// Healthy reports broker connectivity for the health endpoint.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// MarkCompleted records a successful completion report in the advisory
// counters.
func (s *Service) MarkCompleted(ctx context.Context) {
	if err := s.store.DecrActive(ctx); err != nil {
		s.logBrokerFault("decr-active", err)
	}
	if err := s.store.IncrCompleted(ctx); err != nil {
		s.logBrokerFault("incr-completed", err)
	}
}

// MarkFailed records a failed completion report in the advisory counters.
func (s *Service) MarkFailed(ctx context.Context) {
	if err := s.store.DecrActive(ctx); err != nil {
		s.logBrokerFault("decr-active", err)
	}
	if err := s.store.IncrFailed(ctx); err != nil {
		s.logBrokerFault("incr-failed", err)
	}
}

// logBrokerFault logs a broker fault at most once per interval.
func (s *Service) logBrokerFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastFaultLogAt) < brokerFaultLogInterval {
		return
	}
	s.lastFaultLogAt = now

	s.log.Error("queue broker unavailable", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
}
