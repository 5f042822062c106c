package scheduler

import (
	"context"
	"errors"
	"time"

	"applyflow/internal/applications"
	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"
	"applyflow/internal/users"

	"github.com/robfig/cron/v3"
)

// JobLister provides scored catalog listings for auto-apply.
type JobLister interface {
	ListWithScores(ctx context.Context, userID string, filter models.JobFilter) ([]models.ScoredJob, error)
}

// Applier submits applications and reports per-user stats.
type Applier interface {
	Apply(ctx context.Context, req applications.ApplyRequest) (*models.Application, error)
	Stats(ctx context.Context, userID string) (*models.ApplicationStats, error)
}

// ResumePicker selects the resume used for auto-apply.
type ResumePicker interface {
	GetDefaultResumeID(ctx context.Context, userID string) (string, error)
}

// Scheduler drives the daily auto-apply pass on a cron schedule.
type Scheduler struct {
	store      *Store
	jobs       JobLister
	applier    Applier
	resumes    ResumePicker
	cfg        config.AutomationConfig
	log        logger.Logger
	cron       *cron.Cron
	runTimeout time.Duration
}

func New(store *Store, jobs JobLister, applier Applier, resumes ResumePicker, cfg config.AutomationConfig, log logger.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		jobs:       jobs,
		applier:    applier,
		resumes:    resumes,
		cfg:        cfg,
		log:        log,
		cron:       cron.New(),
		runTimeout: 10 * time.Minute,
	}
}

// Start registers the daily run and starts the cron loop.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("automation scheduler disabled", nil)
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("automation scheduler started", map[string]interface{}{
		"cronSpec": s.cfg.CronSpec,
	})
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce executes a single auto-apply pass over all active schedules.
// Failures are isolated per user so one broken schedule cannot starve the
// rest.
func (s *Scheduler) RunOnce(ctx context.Context) {
	schedules, err := s.store.ListActive(ctx)
	if err != nil {
		s.log.Error("failed to list active schedules", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, schedule := range schedules {
		if err := s.runForUser(ctx, schedule); err != nil {
			s.log.Error("auto-apply pass failed for user", map[string]interface{}{
				"userId": schedule.UserID,
				"error":  err.Error(),
			})
		}
	}
}

func (s *Scheduler) runForUser(ctx context.Context, schedule models.AutomationSchedule) error {
	resumeID, err := s.resumes.GetDefaultResumeID(ctx, schedule.UserID)
	if err != nil && !errors.Is(err, users.ErrResumeNotFound) {
		return err
	}
	if resumeID == "" {
		s.log.Info("no resume on file, skipping auto-apply", map[string]interface{}{
			"userId": schedule.UserID,
		})
		return nil
	}

	stats, err := s.applier.Stats(ctx, schedule.UserID)
	if err != nil {
		return err
	}
	remaining := schedule.MaxJobsPerDay - int(stats.AppliedToday)
	if remaining <= 0 {
		s.log.Info("daily auto-apply limit reached", map[string]interface{}{
			"userId": schedule.UserID,
			"limit":  schedule.MaxJobsPerDay,
		})
		return nil
	}

	platform := ""
	if len(schedule.Platforms) > 0 {
		platform = schedule.Platforms[0]
	}

	scored, err := s.jobs.ListWithScores(ctx, schedule.UserID, models.JobFilter{
		Platform: platform,
		MinScore: float64(s.cfg.MinMatchScore),
		Limit:    schedule.MaxJobsPerDay,
	})
	if err != nil {
		return err
	}

	if len(scored) > remaining {
		scored = scored[:remaining]
	}

	for _, job := range scored {
		_, err := s.applier.Apply(ctx, applications.ApplyRequest{
			UserID:   schedule.UserID,
			JobID:    job.ID,
			ResumeID: resumeID,
			JobURL:   job.URL,
			Platform: job.Platform,
		})
		if err != nil {
			// Duplicate-apply is expected when a prior run already covered
			// this job; anything else is logged and the pass continues.
			s.log.Warn("auto-apply skipped job", map[string]interface{}{
				"userId": schedule.UserID,
				"jobId":  job.ID,
				"error":  err.Error(),
			})
			continue
		}
		s.log.Info("auto-apply queued application", map[string]interface{}{
			"userId": schedule.UserID,
			"jobId":  job.ID,
			"score":  job.MatchScore,
		})
	}
	return nil
}
