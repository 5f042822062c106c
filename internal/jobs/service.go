package jobs

import (
	"context"

	"applyflow/internal/common/logger"
	"applyflow/internal/models"
)

// Matcher scores a job posting against a resume on a 0..10 scale.
type Matcher interface {
	MatchJob(ctx context.Context, resumeText, description, title string) float64
}

// ResumeSource provides the resume text used for scoring.
type ResumeSource interface {
	GetResumeText(ctx context.Context, userID string) (string, error)
}

// Service combines the catalog store, the search index and match scoring.
// The search index and matcher are optional; without them the service
// degrades to plain catalog listings.
type Service struct {
	store   *Store
	search  *SearchIndex
	matcher Matcher
	resumes ResumeSource
	log     logger.Logger
}

func NewService(store *Store, search *SearchIndex, matcher Matcher, resumes ResumeSource, log logger.Logger) *Service {
	return &Service{
		store:   store,
		search:  search,
		matcher: matcher,
		resumes: resumes,
		log:     log,
	}
}

// Create inserts a catalog entry and mirrors it into the search index.
func (s *Service) Create(ctx context.Context, job models.Job) (*models.Job, error) {
	created, err := s.store.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		if err := s.search.Index(ctx, *created); err != nil {
			s.log.Warn("failed to index job for search", map[string]interface{}{
				"jobId": created.ID,
				"error": err.Error(),
			})
		}
	}
	return created, nil
}

// GetByID fetches a single catalog entry.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Job, error) {
	return s.store.GetByID(ctx, id)
}

// List returns catalog entries matching the filter.
func (s *Service) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	return s.store.List(ctx, filter)
}

// Search runs a full-text query over the search index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Job, error) {
	if s.search == nil {
		return s.store.List(ctx, models.JobFilter{Limit: limit})
	}
	return s.search.Search(ctx, query, limit)
}

// ListWithScores returns catalog entries annotated with the user's resume
// match score, filtered by the filter's minimum score. Scoring failure for a
// single job degrades to score zero rather than failing the listing.
func (s *Service) ListWithScores(ctx context.Context, userID string, filter models.JobFilter) ([]models.ScoredJob, error) {
	jobs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resumeText := ""
	if s.resumes != nil {
		resumeText, err = s.resumes.GetResumeText(ctx, userID)
		if err != nil {
			s.log.Warn("failed to load resume for scoring", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}

	scored := make([]models.ScoredJob, 0, len(jobs))
	for _, job := range jobs {
		score := 0.0
		if s.matcher != nil && resumeText != "" {
			score = s.matcher.MatchJob(ctx, resumeText, job.Description, job.Title)
		}
		if score < filter.MinScore {
			continue
		}
		scored = append(scored, models.ScoredJob{Job: job, MatchScore: score})
	}
	return scored, nil
}
