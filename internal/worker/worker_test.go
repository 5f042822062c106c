// internal/worker/worker_test.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"
	"applyflow/internal/worker/platforms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type receivedReport struct {
	ApplicationID string
	Report        completionReport
}

// fakeOrigin stands in for the origin server: it serves queued raw payloads
// oldest first and records completion reports.
type fakeOrigin struct {
	mu          sync.Mutex
	jobs        []string
	reports     []receivedReport
	polls       int
	notFound    bool
	serverError bool
	pollDelay   time.Duration

	server *httptest.Server
}

func newFakeOrigin(t *testing.T) *fakeOrigin {
	t.Helper()
	f := &fakeOrigin{}

	mux := http.NewServeMux()
	mux.HandleFunc("/queue/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "redis": "connected"})
	})
	mux.HandleFunc("/queue/jobs/next", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		notFound := f.notFound
		serverError := f.serverError
		delay := f.pollDelay
		var job string
		if len(f.jobs) > 0 {
			job = f.jobs[0]
			f.jobs = f.jobs[1:]
		}
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if notFound {
			http.NotFound(w, r)
			return
		}
		if serverError {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if job == "" {
			_, _ = w.Write([]byte("null"))
			return
		}
		_, _ = w.Write([]byte(job))
	})
	mux.HandleFunc("/applications/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/applications/"), "/complete")
		var report completionReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))

		f.mu.Lock()
		f.reports = append(f.reports, receivedReport{ApplicationID: id, Report: report})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOrigin) enqueue(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, raw)
}

func (f *fakeOrigin) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func (f *fakeOrigin) lastReport() receivedReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[len(f.reports)-1]
}

func (f *fakeOrigin) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// scriptedAutomation fails a configured number of leading attempts.
type scriptedAutomation struct {
	mu       sync.Mutex
	platform string
	failures int
	err      error
	attempts int
}

func (a *scriptedAutomation) Platform() string {
	return a.platform
}

func (a *scriptedAutomation) Apply(ctx context.Context, job models.ApplicationJob) (*platforms.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	if a.attempts <= a.failures {
		return nil, a.err
	}
	return &platforms.Result{AppliedAt: time.Now().UTC(), Platform: a.platform}, nil
}

func (a *scriptedAutomation) attemptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

func testWorkerConfig(origin string) config.WorkerConfig {
	return config.WorkerConfig{
		OriginBaseURL:         origin,
		PollInterval:          5, // milliseconds, tests poll fast
		MaxConcurrentJobs:     1,
		MaxRetries:            3,
		RetryDelay:            1,
		RequestTimeout:        2000,
		ConsecutiveTimeoutMax: 2,
		Consecutive404Max:     2,
	}
}

func newTestWorker(t *testing.T, origin *fakeOrigin, automations ...platforms.Automation) *Worker {
	t.Helper()
	cfg := testWorkerConfig(origin.server.URL)
	log := logger.NewTestLogger(t)
	client := NewOriginClient(cfg.OriginBaseURL, config.GetDuration(cfg.RequestTimeout), log)
	w := New(cfg, client, platforms.NewRegistry(automations...), log)
	t.Cleanup(w.Stop)
	return w
}

func rawJob(applicationID, platform, jobURL string) string {
	raw, _ := json.Marshal(models.ApplicationJob{
		ApplicationID: applicationID,
		UserID:        "user-001",
		JobID:         "job-001",
		ResumeID:      "resume-001",
		Platform:      platform,
		JobURL:        jobURL,
	})
	return string(raw)
}

// ==========================
// Processing Tests
// ==========================

func TestWorker_RetriesThenReportsSuccess(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.enqueue(rawJob("a1", models.PlatformLinkedIn, "https://x"))

	automation := &scriptedAutomation{
		platform: models.PlatformLinkedIn,
		failures: 2,
		err:      errors.New("selector not found: #easy-apply"),
	}
	w := newTestWorker(t, origin, automation)
	w.Start()

	require.Eventually(t, func() bool { return origin.reportCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	w.Stop()

	assert.Equal(t, 3, automation.attemptCount())

	report := origin.lastReport()
	assert.Equal(t, "a1", report.ApplicationID)
	assert.Equal(t, "SUCCESS", report.Report.Status)
	assert.Equal(t, models.PlatformLinkedIn, report.Report.Platform)
	assert.Empty(t, report.Report.ErrorMessage)

	appliedAt, err := time.Parse(time.RFC3339, report.Report.AppliedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), appliedAt, time.Minute)
}

func TestWorker_ExhaustedRetriesReportFailedWithLastError(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.enqueue(rawJob("a2", models.PlatformLinkedIn, "https://x"))

	automation := &scriptedAutomation{
		platform: models.PlatformLinkedIn,
		failures: 10,
		err:      errors.New("navigation timeout on application form"),
	}
	w := newTestWorker(t, origin, automation)
	w.Start()

	require.Eventually(t, func() bool { return origin.reportCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	w.Stop()

	assert.Equal(t, 3, automation.attemptCount())

	report := origin.lastReport()
	assert.Equal(t, "FAILED", report.Report.Status)
	assert.Equal(t, "navigation timeout on application form", report.Report.ErrorMessage)
	assert.Empty(t, report.Report.AppliedAt)
}

func TestWorker_UnknownPlatformFailsWithoutRetry(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.enqueue(rawJob("a3", "MONSTER", "https://x"))

	automation := &scriptedAutomation{platform: models.PlatformLinkedIn}
	w := newTestWorker(t, origin, automation)
	w.Start()

	require.Eventually(t, func() bool { return origin.reportCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	w.Stop()

	assert.Equal(t, 0, automation.attemptCount())

	report := origin.lastReport()
	assert.Equal(t, "FAILED", report.Report.Status)
	assert.Contains(t, report.Report.ErrorMessage, "UNSUPPORTED_PLATFORM")

	// The worker keeps running; a bad platform is fatal for the job only.
	assert.False(t, w.Session().Stopped())
}

func TestWorker_InvalidPayloadFailsWithoutDispatch(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.enqueue(`{"applicationId":"a4","platform":"LINKEDIN","jobUrl":""}`)

	automation := &scriptedAutomation{platform: models.PlatformLinkedIn}
	w := newTestWorker(t, origin, automation)
	w.Start()

	require.Eventually(t, func() bool { return origin.reportCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	w.Stop()

	assert.Equal(t, 0, automation.attemptCount())
	assert.Equal(t, "FAILED", origin.lastReport().Report.Status)
}

func TestWorker_ProcessesJobsOneAtATime(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.enqueue(rawJob("b1", models.PlatformLinkedIn, "https://x"))
	origin.enqueue(rawJob("b2", models.PlatformLinkedIn, "https://x"))

	automation := &scriptedAutomation{platform: models.PlatformLinkedIn}
	w := newTestWorker(t, origin, automation)
	w.Start()

	require.Eventually(t, func() bool { return origin.reportCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	w.Stop()

	processed, succeeded, failed := w.Session().Totals()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(2), succeeded)
	assert.Equal(t, int64(0), failed)
}

// ==========================
// Lifecycle / Breaker Tests
// ==========================

func TestWorker_StopIsIdempotent(t *testing.T) {
	origin := newFakeOrigin(t)
	w := newTestWorker(t, origin, &scriptedAutomation{platform: models.PlatformLinkedIn})
	w.Start()

	w.Stop()
	w.Stop()

	assert.True(t, w.Session().Stopped())
}

func TestWorker_StopsAfterConsecutive404sBeforeFirstSuccess(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.notFound = true

	w := newTestWorker(t, origin, &scriptedAutomation{platform: models.PlatformLinkedIn})
	w.Start()

	require.Eventually(t, func() bool { return w.Session().Stopped() }, 5*time.Second, 10*time.Millisecond)
}

func TestWorker_404AfterSuccessIsNotFatal(t *testing.T) {
	origin := newFakeOrigin(t)

	w := newTestWorker(t, origin, &scriptedAutomation{platform: models.PlatformLinkedIn})
	w.Start()

	// Let a couple of successful (null) polls land, then break the route.
	require.Eventually(t, func() bool { return origin.pollCount() >= 2 }, 5*time.Second, 10*time.Millisecond)
	origin.mu.Lock()
	origin.notFound = true
	origin.mu.Unlock()

	before := origin.pollCount()
	require.Eventually(t, func() bool { return origin.pollCount() >= before+5 }, 5*time.Second, 10*time.Millisecond)

	assert.False(t, w.Session().Stopped())
	w.Stop()
}

func TestWorker_StopsAfterConsecutiveTimeouts(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.mu.Lock()
	origin.pollDelay = 100 * time.Millisecond
	origin.mu.Unlock()

	cfg := testWorkerConfig(origin.server.URL)
	cfg.RequestTimeout = 10
	log := logger.NewTestLogger(t)
	client := NewOriginClient(cfg.OriginBaseURL, config.GetDuration(cfg.RequestTimeout), log)
	w := New(cfg, client, platforms.NewRegistry(), log)
	t.Cleanup(w.Stop)
	w.Start()

	require.Eventually(t, func() bool { return w.Session().Stopped() }, 5*time.Second, 10*time.Millisecond)
}

func TestWorker_StopsWhenOriginAnswersServerError(t *testing.T) {
	origin := newFakeOrigin(t)
	origin.mu.Lock()
	origin.serverError = true
	origin.mu.Unlock()

	w := newTestWorker(t, origin, &scriptedAutomation{platform: models.PlatformLinkedIn})
	w.Start()

	// A 5xx is backend-down, not a transient blip: the loop must not keep
	// hammering the origin.
	require.Eventually(t, func() bool { return w.Session().Stopped() }, 5*time.Second, 10*time.Millisecond)
}

func TestWorker_StopsWhenOriginRefusesConnection(t *testing.T) {
	origin := newFakeOrigin(t)
	url := origin.server.URL
	origin.server.Close()

	cfg := testWorkerConfig(url)
	log := logger.NewTestLogger(t)
	client := NewOriginClient(cfg.OriginBaseURL, config.GetDuration(cfg.RequestTimeout), log)
	w := New(cfg, client, platforms.NewRegistry(), log)
	t.Cleanup(w.Stop)
	w.Start()

	require.Eventually(t, func() bool { return w.Session().Stopped() }, 5*time.Second, 10*time.Millisecond)
}
