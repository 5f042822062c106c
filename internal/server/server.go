// Package server exposes the origin HTTP surface: the queue poll protocol
// consumed by the automation worker, the applications API, and the jobs
// catalog.
package server

import (
	"context"

	"applyflow/internal/applications"
	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/jobs"
	"applyflow/internal/queue"
	"applyflow/internal/scheduler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the service layer into echo routes.
type Server struct {
	echo         *echo.Echo
	cfg          config.ServerConfig
	queueCfg     config.QueueConfig
	queue        *queue.Service
	applications *applications.Service
	jobs         *jobs.Service
	schedules    *scheduler.Store
	log          logger.Logger
}

func New(
	cfg config.ServerConfig,
	queueCfg config.QueueConfig,
	queueSvc *queue.Service,
	appSvc *applications.Service,
	jobSvc *jobs.Service,
	schedules *scheduler.Store,
	log logger.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Use(middleware.Recover())

	s := &Server{
		echo:         e,
		cfg:          cfg,
		queueCfg:     queueCfg,
		queue:        queueSvc,
		applications: appSvc,
		jobs:         jobSvc,
		schedules:    schedules,
		log:          log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	// Worker-facing queue protocol (trusted network, no auth)
	e.GET("/queue/jobs/next", s.handleNextJob)
	e.GET("/queue/stats", s.handleQueueStats)
	e.GET("/queue/health", s.handleQueueHealth)

	// Applications API
	e.POST("/applications/apply", s.handleApply)
	e.GET("/applications", s.handleListApplications)
	e.GET("/applications/stats", s.handleApplicationStats)
	e.GET("/applications/job/:jobId", s.handleGetApplicationByJob)
	e.GET("/applications/:id", s.handleGetApplication)
	e.POST("/applications/:id/complete", s.handleCompleteApplication)

	// Jobs catalog
	e.POST("/jobs", s.handleCreateJob)
	e.GET("/jobs", s.handleListJobs)
	e.GET("/jobs/search", s.handleSearchJobs)

	// Automation schedules
	e.PUT("/automation/schedule", s.handleUpsertSchedule)
	e.GET("/automation/schedule", s.handleGetSchedule)

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Start begins serving and blocks until shutdown.
func (s *Server) Start() error {
	return s.echo.Start(s.cfg.Address())
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
