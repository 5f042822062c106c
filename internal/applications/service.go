package applications

import (
	"context"
	"errors"
	"time"

	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/common/logger"
	"applyflow/internal/common/metrics"
	"applyflow/internal/models"
)

// Enqueuer hands application jobs to the queue service.
type Enqueuer interface {
	AddApplicationJob(ctx context.Context, job models.ApplicationJob) error
	MarkCompleted(ctx context.Context)
	MarkFailed(ctx context.Context)
}

// Notifier delivers optional terminal-status notifications. Implementations
// must not block the completion path on delivery failure.
type Notifier interface {
	NotifyCompletion(ctx context.Context, app *models.Application)
}

// ApplyRequest is the input to Apply. JobURL and Platform come from the job
// catalog entry the client selected.
type ApplyRequest struct {
	UserID   string
	JobID    string
	ResumeID string
	JobURL   string
	Platform string
	Email    string
	Phone    string
}

// Service wires record creation to job enqueueing and terminal transitions
// to queue counters and notifications.
type Service struct {
	store    *Store
	enqueuer Enqueuer
	notifier Notifier
	log      logger.Logger
}

func NewService(store *Store, enqueuer Enqueuer, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		store:    store,
		enqueuer: enqueuer,
		notifier: notifier,
		log:      log,
	}
}

// Apply creates a PENDING record and enqueues the matching job. If the
// enqueue fails after its own retries, the record is rolled back so the user
// can retry instead of being stuck with a record no worker will ever process.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*models.Application, error) {
	exists, err := s.store.ExistsForUserAndJob(ctx, req.UserID, req.JobID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("duplicate-check", err)
	}
	if exists {
		return nil, stderrors.NewDuplicateApplicationError(req.UserID, req.JobID)
	}

	app, err := s.store.Create(ctx, req.UserID, req.JobID, req.ResumeID)
	if err != nil {
		return nil, stderrors.NewDatabaseInsertFailedError(err)
	}

	job := models.ApplicationJob{
		ApplicationID: app.ID,
		UserID:        req.UserID,
		JobID:         req.JobID,
		ResumeID:      req.ResumeID,
		Platform:      req.Platform,
		JobURL:        req.JobURL,
		Email:         req.Email,
		Phone:         req.Phone,
	}

	if err := s.enqueuer.AddApplicationJob(ctx, job); err != nil {
		s.log.Error("enqueue failed, rolling back application record", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		if delErr := s.store.Delete(ctx, app.ID); delErr != nil {
			s.log.Error("rollback delete failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         delErr.Error(),
			})
		}
		return nil, err
	}

	metrics.ApplicationsCreated.Inc()
	s.log.Info("application created and enqueued", map[string]interface{}{
		"applicationId": app.ID,
		"userId":        req.UserID,
		"jobId":         req.JobID,
		"platform":      req.Platform,
	})
	return app, nil
}

// Complete applies the worker's terminal report to the record. Repeated
// reports of the same terminal state are no-ops; a conflicting report against
// an already-terminal record is rejected.
func (s *Service) Complete(ctx context.Context, id string, report models.CompletionReport) (*models.Application, error) {
	if !report.Status.IsTerminal() {
		return nil, stderrors.NewValidationFailedError("status must be SUCCESS or FAILED")
	}

	appliedAt := report.AppliedAt
	if report.Status == models.StatusSuccess && appliedAt == nil {
		now := time.Now().UTC()
		appliedAt = &now
	}

	transitioned, err := s.store.Complete(ctx, id, report.Status, report.ErrorMessage, appliedAt)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("complete", err)
	}

	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, stderrors.NewApplicationNotFoundError(id)
		}
		return nil, stderrors.NewQueryExecutionFailedError("get", err)
	}

	if !transitioned {
		if app.Status == report.Status {
			// Duplicate delivery of the same report; already applied.
			return app, nil
		}
		return nil, stderrors.NewInvalidStatusTransitionError(id, string(report.Status))
	}

	switch report.Status {
	case models.StatusSuccess:
		s.enqueuer.MarkCompleted(ctx)
	case models.StatusFailed:
		s.enqueuer.MarkFailed(ctx)
	}
	metrics.ApplicationsCompleted.WithLabelValues(string(report.Status)).Inc()

	s.log.Info("application completed", map[string]interface{}{
		"applicationId": id,
		"status":        string(report.Status),
	})

	if s.notifier != nil {
		s.notifier.NotifyCompletion(ctx, app)
	}
	return app, nil
}

// GetUserApplications lists the user's applications.
func (s *Service) GetUserApplications(ctx context.Context, userID string) ([]models.Application, error) {
	apps, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list", err)
	}
	return apps, nil
}

// GetByID fetches a single application.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, stderrors.NewApplicationNotFoundError(id)
		}
		return nil, stderrors.NewQueryExecutionFailedError("get", err)
	}
	return app, nil
}

// GetByJobID fetches the user's application for a specific job.
func (s *Service) GetByJobID(ctx context.Context, userID, jobID string) (*models.Application, error) {
	app, err := s.store.GetByUserAndJob(ctx, userID, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, stderrors.NewApplicationNotFoundError(jobID)
		}
		return nil, stderrors.NewQueryExecutionFailedError("get-by-job", err)
	}
	return app, nil
}

// Stats summarizes the user's applications.
func (s *Service) Stats(ctx context.Context, userID string) (*models.ApplicationStats, error) {
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("stats", err)
	}
	return stats, nil
}
