// internal/server/application_handlers.go
package server

import (
	"net/http"
	"time"

	"applyflow/internal/applications"
	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/models"

	"github.com/labstack/echo/v4"
)

// userID resolves the acting user from the X-User-ID header. Authentication
// is handled upstream; this service trusts the network it is deployed on.
func userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get("X-User-ID")
	if id == "" {
		id = c.QueryParam("userId")
	}
	if id == "" {
		return "", stderrors.NewValidationFailedError("user id is required")
	}
	return id, nil
}

type applyRequest struct {
	JobID    string `json:"jobId" validate:"required"`
	ResumeID string `json:"resumeId" validate:"required"`
	JobURL   string `json:"jobUrl" validate:"required,url"`
	Platform string `json:"platform" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
}

func (s *Server) handleApply(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req applyRequest
	if err := c.Bind(&req); err != nil {
		return stderrors.NewValidationFailedError("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	app, err := s.applications.Apply(c.Request().Context(), applications.ApplyRequest{
		UserID:   uid,
		JobID:    req.JobID,
		ResumeID: req.ResumeID,
		JobURL:   req.JobURL,
		Platform: req.Platform,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, app)
}

func (s *Server) handleListApplications(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	apps, err := s.applications.GetUserApplications(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return c.JSON(http.StatusOK, apps)
}

func (s *Server) handleApplicationStats(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	stats, err := s.applications.Stats(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetApplicationByJob(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	app, err := s.applications.GetByJobID(c.Request().Context(), uid, c.Param("jobId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

func (s *Server) handleGetApplication(c echo.Context) error {
	app, err := s.applications.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

type completeRequest struct {
	Status       string `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	AppliedAt    string `json:"appliedAt"`
	ErrorMessage string `json:"errorMessage"`
	Platform     string `json:"platform"`
}

// handleCompleteApplication receives the worker's terminal report. Like the
// poll endpoint it is unauthenticated on the trusted network.
func (s *Server) handleCompleteApplication(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return stderrors.NewValidationFailedError("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	report := models.CompletionReport{
		Status:       models.ApplicationStatus(req.Status),
		ErrorMessage: req.ErrorMessage,
		Platform:     req.Platform,
	}
	if req.AppliedAt != "" {
		appliedAt, err := time.Parse(time.RFC3339, req.AppliedAt)
		if err != nil {
			return stderrors.NewValidationFailedError("appliedAt must be RFC3339")
		}
		report.AppliedAt = &appliedAt
	}

	app, err := s.applications.Complete(c.Request().Context(), c.Param("id"), report)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}
