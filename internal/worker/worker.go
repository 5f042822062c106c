// Package worker implements the polling automation worker: it claims
// application jobs from the origin server, dispatches them to the platform
// automations, and reports terminal outcomes back.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"applyflow/internal/common/config"
	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/common/logger"
	"applyflow/internal/common/metrics"
	"applyflow/internal/common/validation"
	"applyflow/internal/models"
	"applyflow/internal/worker/platforms"
)

// jobPayloadSchema re-validates claimed payloads at the process boundary. The
// producer is trusted code, but the queue is shared infrastructure.
var jobPayloadSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"applicationId", "platform", "jobUrl"},
	"properties": map[string]interface{}{
		"applicationId": map[string]interface{}{"type": "string", "minLength": 1},
		"userId":        map[string]interface{}{"type": "string"},
		"jobId":         map[string]interface{}{"type": "string"},
		"resumeId":      map[string]interface{}{"type": "string"},
		"platform":      map[string]interface{}{"type": "string", "minLength": 1},
		"jobUrl":        map[string]interface{}{"type": "string", "minLength": 1},
		"email":         map[string]interface{}{"type": "string"},
		"phone":         map[string]interface{}{"type": "string"},
		"entryId":       map[string]interface{}{"type": "string"},
	},
}

// Worker runs the poll loop. One job is processed at a time; ticks that land
// while a job is in flight are skipped.
type Worker struct {
	cfg      config.WorkerConfig
	client   *OriginClient
	registry *platforms.Registry
	retry    RetryPolicy
	session  *Session
	log      logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func New(cfg config.WorkerConfig, client *OriginClient, registry *platforms.Registry, log logger.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		client:   client,
		registry: registry,
		retry:    DefaultRetryPolicy(cfg.MaxRetries, config.GetDuration(cfg.RetryDelay)),
		session:  NewSession(),
		log:      log,
	}
}

// Session exposes the loop state for tests and the manager process.
func (w *Worker) Session() *Session {
	return w.session
}

// Start probes origin health and launches the poll loop. The probe result is
// logged but never blocks startup; the origin may come up after the worker.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	probeCtx, probeCancel := context.WithTimeout(ctx, config.GetDuration(w.cfg.RequestTimeout))
	health, err := w.client.CheckHealth(probeCtx)
	probeCancel()
	if err != nil {
		w.log.Warn("origin health probe failed, polling anyway", map[string]interface{}{
			"origin": w.cfg.OriginBaseURL,
			"error":  err.Error(),
		})
	} else {
		w.log.Info("origin reachable", map[string]interface{}{
			"origin": w.cfg.OriginBaseURL,
			"status": health.Status,
			"redis":  health.Redis,
		})
	}

	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	interval := config.GetDuration(w.cfg.PollInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("worker started", map[string]interface{}{
		"pollInterval": interval.String(),
		"platforms":    w.registry.Platforms(),
	})

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick performs one poll. Breakers are evaluated here: any non-timeout fault
// or too many consecutive timeouts stop the worker; a 404 is tolerated for a
// grace period during rolling deploys.
func (w *Worker) tick(ctx context.Context) {
	if w.session.Busy() {
		w.log.Debug("tick skipped, job in flight", nil)
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, config.GetDuration(w.cfg.RequestTimeout))
	job, err := w.client.NextJob(pollCtx)
	cancel()

	if err != nil {
		w.handlePollError(ctx, err)
		return
	}

	w.session.RecordPollSuccess()
	if job == nil {
		return
	}

	if !w.session.TryBeginJob() {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// Detached from the loop context: once claimed, a job runs to
		// completion even if a stop lands mid-flight.
		w.processJob(context.Background(), *job)
	}()
}

func (w *Worker) handlePollError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	switch {
	case isConnectionRefused(err):
		w.log.Error("origin refused connection, stopping worker", map[string]interface{}{
			"origin": w.cfg.OriginBaseURL,
			"error":  err.Error(),
		})
		go w.Stop()

	case isTimeout(err):
		count := w.session.RecordTimeout()
		w.log.Warn("poll timed out", map[string]interface{}{
			"consecutiveTimeouts": count,
			"limit":               w.cfg.ConsecutiveTimeoutMax,
		})
		if count >= w.cfg.ConsecutiveTimeoutMax {
			w.log.Error("too many consecutive timeouts, stopping worker", map[string]interface{}{
				"consecutiveTimeouts": count,
			})
			go w.Stop()
		}

	case errors.Is(err, ErrRouteNotFound):
		count := w.session.Record404()
		if w.session.SawPollSuccess() {
			// Route existed before; likely a mid-deploy blip.
			w.log.Warn("poll route answered 404", map[string]interface{}{
				"consecutive404": count,
			})
			return
		}
		w.log.Warn("poll route not found", map[string]interface{}{
			"consecutive404": count,
			"limit":          w.cfg.Consecutive404Max,
		})
		if count >= w.cfg.Consecutive404Max {
			w.log.Error("poll route never appeared, stopping worker", map[string]interface{}{
				"consecutive404": count,
			})
			go w.Stop()
		}

	default:
		// Connection reset, DNS failure, 5xx: the backend is down or broken
		// either way, and polling it further does no good.
		w.log.Error("poll failed, stopping worker", map[string]interface{}{
			"origin": w.cfg.OriginBaseURL,
			"error":  err.Error(),
		})
		go w.Stop()
	}
}

// processJob validates the payload, dispatches to the platform automation
// with the retry policy, and reports the terminal outcome. Once started, a
// job runs to completion; stop takes effect on the next tick.
func (w *Worker) processJob(ctx context.Context, job models.ApplicationJob) {
	start := time.Now()
	log := w.log.WithFields(map[string]interface{}{
		"applicationId": job.ApplicationID,
		"platform":      job.Platform,
	})
	log.Info("processing job", map[string]interface{}{
		"jobUrl": job.JobURL,
	})

	result, err := w.executeJob(ctx, job, log)

	metrics.WorkerJobDuration.WithLabelValues(job.Platform).Observe(time.Since(start).Seconds())

	report := completionReport{Platform: job.Platform}
	if err != nil {
		report.Status = string(models.StatusFailed)
		report.ErrorMessage = err.Error()
		metrics.WorkerJobsProcessed.WithLabelValues(job.Platform, "FAILED").Inc()
	} else {
		report.Status = string(models.StatusSuccess)
		report.AppliedAt = result.AppliedAt.Format(time.RFC3339)
		metrics.WorkerJobsProcessed.WithLabelValues(job.Platform, "SUCCESS").Inc()
	}

	reportCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(w.cfg.RequestTimeout))
	defer cancel()
	if reportErr := w.client.ReportCompletion(reportCtx, job.ApplicationID, report); reportErr != nil {
		// The record stays PENDING; nothing to do but log.
		log.Error("completion report failed", map[string]interface{}{
			"status": report.Status,
			"error":  reportErr.Error(),
		})
	} else {
		log.Info("job completed", map[string]interface{}{
			"status":   report.Status,
			"duration": time.Since(start).String(),
		})
	}

	w.session.EndJob(err == nil)
}

func (w *Worker) executeJob(ctx context.Context, job models.ApplicationJob, log logger.Logger) (*platforms.Result, error) {
	if err := w.validatePayload(job); err != nil {
		log.Warn("job payload rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	automation, ok := w.registry.Lookup(job.Platform)
	if !ok {
		log.Warn("unsupported platform", nil)
		return nil, stderrors.NewUnsupportedPlatformError(job.Platform)
	}

	return Retry(ctx, w.retry, func(ctx context.Context, attempt int) (*platforms.Result, error) {
		metrics.WorkerApplyAttempts.WithLabelValues(job.Platform).Inc()
		result, err := automation.Apply(ctx, job)
		if err != nil {
			log.Warn("apply attempt failed", map[string]interface{}{
				"attempt":     attempt,
				"maxAttempts": w.retry.MaxAttempts,
				"error":       err.Error(),
			})
		}
		return result, err
	})
}

// validatePayload checks the claimed payload against the queue job schema.
func (w *Worker) validatePayload(job models.ApplicationJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return stderrors.NewValidationFailedError(err.Error())
	}
	var document map[string]interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return stderrors.NewValidationFailedError(err.Error())
	}

	result, err := validation.ValidateDocument(document, jobPayloadSchema)
	if err != nil {
		return stderrors.NewValidationFailedError(err.Error())
	}
	if !result.Valid {
		return stderrors.NewValidationFailedError(result.ErrorSummary())
	}
	return nil
}

// Stop halts the poll loop and waits for an in-flight job to finish. Safe to
// call from any goroutine, any number of times.
func (w *Worker) Stop() {
	if !w.session.MarkStopped() {
		return
	}

	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	processed, succeeded, failed := w.session.Totals()
	w.log.Info("worker stopped", map[string]interface{}{
		"processed": processed,
		"succeeded": succeeded,
		"failed":    failed,
	})
}
