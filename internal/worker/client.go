// internal/worker/client.go
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	commonhttp "applyflow/internal/common/http"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"
)

// ErrRouteNotFound means the origin answered 404 on the poll route. During a
// rolling deploy the worker can come up before the origin exposes the queue
// routes, so this is tolerated for a grace period.
var ErrRouteNotFound = errors.New("origin poll route not found")

// OriginClient is the worker's HTTP client for the origin server's queue
// protocol and completion callback.
type OriginClient struct {
	baseURL    string
	httpClient *commonhttp.Client
	log        logger.Logger
}

func NewOriginClient(baseURL string, timeout time.Duration, log logger.Logger) *OriginClient {
	return &OriginClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: commonhttp.NewClient(timeout),
		log:        log,
	}
}

// NextJob claims the oldest waiting job. A null body means no job was
// available (or the origin's claim deadline elapsed); both decode to nil.
func (c *OriginClient) NextJob(ctx context.Context) (*models.ApplicationJob, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/queue/jobs/next", nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("poll origin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRouteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll origin: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var job models.ApplicationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return &job, nil
}

type completionReport struct {
	Status       string `json:"status"`
	AppliedAt    string `json:"appliedAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// ReportCompletion posts the terminal outcome for an application. The origin
// treats a repeated identical report as a no-op, so retrying a report after a
// worker restart is safe.
func (c *OriginClient) ReportCompletion(ctx context.Context, applicationID string, report completionReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal completion report: %w", err)
	}

	url := fmt.Sprintf("%s/applications/%s/complete", c.baseURL, applicationID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("post completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("post completion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type originHealth struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// CheckHealth probes origin connectivity at startup. Failures are informational.
func (c *OriginClient) CheckHealth(ctx context.Context) (originHealth, error) {
	var health originHealth

	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/queue/health", nil)
	if err != nil {
		return health, fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return health, fmt.Errorf("probe origin health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("probe origin health: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("decode health response: %w", err)
	}
	return health, nil
}

// isConnectionRefused reports whether the origin is not listening at all, as
// opposed to listening but slow.
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isTimeout covers both client-side request timeouts and context deadlines.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
