// internal/server/server_test.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"applyflow/internal/applications"
	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"
	"applyflow/internal/queue"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type serverFixture struct {
	server  *Server
	redis   *miniredis.Miniredis
	sqlMock sqlmock.Sqlmock
	queue   *queue.Service
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queueCfg := config.QueueConfig{
		KeyPrefix:      "applyflow:queue",
		PeekTimeout:    500,
		ClaimDeadline:  4000,
		EnqueueRetries: 3,
		EnqueueBackoff: 1,
	}
	log := logger.NewTestLogger(t)
	store := queue.NewStore(client, queueCfg, log)
	queueSvc := queue.NewService(store, queueCfg, log)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	appSvc := applications.NewService(applications.NewStore(db), queueSvc, nil, log)

	srv := New(config.ServerConfig{Port: 0}, queueCfg, queueSvc, appSvc, nil, nil, log)
	return &serverFixture{server: srv, redis: mr, sqlMock: mock, queue: queueSvc}
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func sampleJob() models.ApplicationJob {
	return models.ApplicationJob{
		ApplicationID: "a1",
		UserID:        "user-001",
		JobID:         "job-001",
		ResumeID:      "resume-001",
		Platform:      models.PlatformLinkedIn,
		JobURL:        "https://x",
	}
}

// ==========================
// Poll Endpoint Tests
// ==========================

func TestHandleNextJob_EmptyQueueReturnsNull(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/queue/jobs/next", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestHandleNextJob_ReturnsOldestJob(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.queue.AddApplicationJob(ctx, sampleJob()))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/queue/jobs/next", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.ApplicationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "a1", job.ApplicationID)
	assert.Equal(t, models.PlatformLinkedIn, job.Platform)
	assert.NotEmpty(t, job.EntryID)

	// Claim removed the entry
	rec = f.do(httptest.NewRequest(http.MethodGet, "/queue/jobs/next", nil))
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestHandleNextJob_BrokerDownReturnsNullWithinDeadline(t *testing.T) {
	f := newServerFixture(t)
	f.redis.Close()

	start := time.Now()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/queue/jobs/next", nil))
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
	assert.Less(t, elapsed, 4*time.Second)
}

// ==========================
// Stats / Health Tests
// ==========================

func TestHandleQueueStats(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, f.queue.AddApplicationJob(context.Background(), sampleJob()))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/queue/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Waiting)
}

func TestHandleQueueStats_BrokerDownReturnsZeros(t *testing.T) {
	f := newServerFixture(t)
	f.redis.Close()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/queue/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, models.QueueStats{}, stats)
}

func TestHandleQueueHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/queue/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health queueHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "connected", health.Redis)

	f.redis.Close()
	rec = f.do(httptest.NewRequest(http.MethodGet, "/queue/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "error", health.Status)
	assert.Equal(t, "disconnected", health.Redis)
}

// ==========================
// Applications API Tests
// ==========================

func TestHandleApply_CreatesRecordAndEnqueues(t *testing.T) {
	f := newServerFixture(t)

	f.sqlMock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-001", "job-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.sqlMock.ExpectExec(`INSERT INTO applications`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := `{"jobId":"job-001","resumeId":"resume-001","jobUrl":"https://linkedin.com/jobs/1","platform":"LINKEDIN"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/apply", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "user-001")

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var app models.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, models.StatusPending, app.Status)

	// The matching job is now claimable
	job, err := f.queue.GetNextJob(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, app.ID, job.ApplicationID)
}

func TestHandleApply_DuplicateReturnsConflict(t *testing.T) {
	f := newServerFixture(t)

	f.sqlMock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-001", "job-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	body := `{"jobId":"job-001","resumeId":"resume-001","jobUrl":"https://linkedin.com/jobs/1","platform":"LINKEDIN"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/apply", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "user-001")

	rec := f.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "DUPLICATE_APPLICATION", envelope.Error.Code)
}

func TestHandleApply_MissingFieldsRejected(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/applications/apply", strings.NewReader(`{"jobId":"job-001"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "user-001")

	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompleteApplication(t *testing.T) {
	f := newServerFixture(t)

	now := time.Now().UTC()
	f.sqlMock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.sqlMock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "job_id", "resume_id", "status", "applied_at", "error_message", "created_at", "updated_at"}).
			AddRow("app-1", "user-001", "job-001", "resume-001", "SUCCESS", now, nil, now, now))

	body := `{"status":"SUCCESS","appliedAt":"` + now.Format(time.RFC3339) + `","platform":"LINKEDIN"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/app-1/complete", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var app models.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, models.StatusSuccess, app.Status)
}

func TestHandleCompleteApplication_InvalidStatusRejected(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/applications/app-1/complete", strings.NewReader(`{"status":"PENDING"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
