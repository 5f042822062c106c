// internal/server/job_handlers.go
package server

import (
	"errors"
	"net/http"
	"strconv"

	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/jobs"
	"applyflow/internal/models"
	"applyflow/internal/scheduler"

	"github.com/labstack/echo/v4"
)

type createJobRequest struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company" validate:"required"`
	Platform    string `json:"platform" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
}

func (s *Server) handleCreateJob(c echo.Context) error {
	var req createJobRequest
	if err := c.Bind(&req); err != nil {
		return stderrors.NewValidationFailedError("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	job, err := s.jobs.Create(c.Request().Context(), models.Job{
		Title:       req.Title,
		Company:     req.Company,
		Platform:    req.Platform,
		URL:         req.URL,
		Description: req.Description,
		Location:    req.Location,
		Salary:      req.Salary,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrDuplicateURL) {
			return stderrors.NewBusinessRuleError("Job already exists", "a job with this url is already in the catalog")
		}
		return err
	}
	return c.JSON(http.StatusCreated, job)
}

func (s *Server) handleListJobs(c echo.Context) error {
	filter := models.JobFilter{
		Platform: c.QueryParam("platform"),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	// With a minScore the listing is annotated with resume match scores
	if minScore := c.QueryParam("minScore"); minScore != "" {
		score, err := strconv.ParseFloat(minScore, 64)
		if err != nil {
			return stderrors.NewValidationFailedError("minScore must be numeric")
		}
		filter.MinScore = score

		uid, err := userID(c)
		if err != nil {
			return err
		}
		scored, err := s.jobs.ListWithScores(c.Request().Context(), uid, filter)
		if err != nil {
			return err
		}
		if scored == nil {
			scored = []models.ScoredJob{}
		}
		return c.JSON(http.StatusOK, scored)
	}

	list, err := s.jobs.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Job{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleSearchJobs(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return stderrors.NewValidationFailedError("q is required")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	results, err := s.jobs.Search(c.Request().Context(), query, limit)
	if err != nil {
		return err
	}
	if results == nil {
		results = []models.Job{}
	}
	return c.JSON(http.StatusOK, results)
}

type scheduleRequest struct {
	CronExpression string   `json:"cronExpression" validate:"required"`
	MaxJobsPerDay  int      `json:"maxJobsPerDay" validate:"required,min=1,max=100"`
	Platforms      []string `json:"platforms" validate:"required,min=1"`
	IsActive       bool     `json:"isActive"`
}

func (s *Server) handleUpsertSchedule(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return stderrors.NewValidationFailedError("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	schedule, err := s.schedules.Upsert(c.Request().Context(), models.AutomationSchedule{
		UserID:         uid,
		CronExpression: req.CronExpression,
		MaxJobsPerDay:  req.MaxJobsPerDay,
		Platforms:      req.Platforms,
		IsActive:       req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schedule)
}

func (s *Server) handleGetSchedule(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	schedule, err := s.schedules.GetByUser(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, scheduler.ErrScheduleNotFound) {
			return stderrors.NewResourceNotFoundError("automation", "no schedule for user")
		}
		return err
	}
	return c.JSON(http.StatusOK, schedule)
}
