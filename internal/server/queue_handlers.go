// internal/server/queue_handlers.go
package server

import (
	"context"
	"net/http"

	"applyflow/internal/common/config"
	"applyflow/internal/models"

	"github.com/labstack/echo/v4"
)

// handleNextJob is the worker's claim operation. It races the claim against
// the configured deadline; on timeout or empty queue it returns 200 with a
// null body. The worker cannot distinguish "no job" from "broker timeout" —
// both are the same null signal.
func (s *Server) handleNextJob(c echo.Context) error {
	deadline := config.GetDuration(s.queueCfg.ClaimDeadline)
	ctx, cancel := context.WithTimeout(c.Request().Context(), deadline)
	defer cancel()

	type result struct {
		job *models.ApplicationJob
	}
	resultCh := make(chan result, 1)

	go func() {
		job, _ := s.queue.GetNextJob(ctx)
		resultCh <- result{job: job}
	}()

	select {
	case res := <-resultCh:
		return c.JSON(http.StatusOK, res.job)
	case <-ctx.Done():
		// The claim outlived its budget; answer null and let the claim
		// goroutine finish against the cancelled context.
		return c.JSON(http.StatusOK, nil)
	}
}

func (s *Server) handleQueueStats(c echo.Context) error {
	stats := s.queue.Stats(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}

type queueHealthResponse struct {
	Status      string             `json:"status"`
	Redis       string             `json:"redis"`
	RedisConfig string             `json:"redisConfig"`
	QueueStats  *models.QueueStats `json:"queueStats,omitempty"`
}

// handleQueueHealth reports broker connectivity. A dead broker is still a
// 200; the body carries the degraded status.
func (s *Server) handleQueueHealth(c echo.Context) error {
	ctx := c.Request().Context()

	resp := queueHealthResponse{RedisConfig: s.queueCfg.KeyPrefix}
	if err := s.queue.Healthy(ctx); err != nil {
		resp.Status = "error"
		resp.Redis = "disconnected"
		return c.JSON(http.StatusOK, resp)
	}

	resp.Status = "ok"
	resp.Redis = "connected"
	stats := s.queue.Stats(ctx)
	resp.QueueStats = &stats
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
