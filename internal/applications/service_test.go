// internal/applications/service_test.go
package applications

import (
	"context"
	"errors"
	"testing"
	"time"

	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeEnqueuer struct {
	jobs      []models.ApplicationJob
	failWith  error
	completed int
	failed    int
}

func (f *fakeEnqueuer) AddApplicationJob(ctx context.Context, job models.ApplicationJob) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeEnqueuer) MarkCompleted(ctx context.Context) { f.completed++ }
func (f *fakeEnqueuer) MarkFailed(ctx context.Context)    { f.failed++ }

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeEnqueuer) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enq := &fakeEnqueuer{}
	svc := NewService(NewStore(db), enq, nil, logger.NewTestLogger(t))
	return svc, mock, enq
}

func applyRequest() ApplyRequest {
	return ApplyRequest{
		UserID:   "user-001",
		JobID:    "job-001",
		ResumeID: "resume-001",
		JobURL:   "https://linkedin.com/jobs/1",
		Platform: models.PlatformLinkedIn,
		Email:    "candidate@example.com",
	}
}

func applicationColumns() []string {
	return []string{"id", "user_id", "job_id", "resume_id", "status", "applied_at", "error_message", "created_at", "updated_at"}
}

func applicationRow(id string, status models.ApplicationStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(applicationColumns()).
		AddRow(id, "user-001", "job-001", "resume-001", string(status), nil, nil, now, now)
}

// ==========================
// Apply Tests
// ==========================

func TestService_Apply_Success(t *testing.T) {
	svc, mock, enq := newTestService(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-001", "job-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs(sqlmock.AnyArg(), "user-001", "job-001", "resume-001", "PENDING",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app, err := svc.Apply(context.Background(), applyRequest())

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, models.StatusPending, app.Status)

	require.Len(t, enq.jobs, 1)
	assert.Equal(t, app.ID, enq.jobs[0].ApplicationID)
	assert.Equal(t, models.PlatformLinkedIn, enq.jobs[0].Platform)
	assert.Equal(t, "https://linkedin.com/jobs/1", enq.jobs[0].JobURL)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Apply_DuplicateRejected(t *testing.T) {
	svc, mock, enq := newTestService(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-001", "job-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	app, err := svc.Apply(context.Background(), applyRequest())

	require.Error(t, err)
	assert.Nil(t, app)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDuplicateApplication, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	// No second job may enter the queue
	assert.Empty(t, enq.jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Apply_EnqueueFailureRollsBack(t *testing.T) {
	svc, mock, enq := newTestService(t)
	enq.failWith = stderrors.NewEnqueueFailedError(errors.New("broker down"))

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-001", "job-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectExec(`INSERT INTO applications`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(`DELETE FROM applications`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app, err := svc.Apply(context.Background(), applyRequest())

	require.Error(t, err)
	assert.Nil(t, app)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Complete Tests
// ==========================

func TestService_Complete_Success(t *testing.T) {
	svc, mock, enq := newTestService(t)

	appliedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-1", "SUCCESS", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", models.StatusSuccess))

	app, err := svc.Complete(context.Background(), "app-1", models.CompletionReport{
		Status:    models.StatusSuccess,
		AppliedAt: &appliedAt,
		Platform:  models.PlatformLinkedIn,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, app.Status)
	assert.Equal(t, 1, enq.completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Complete_FailedReportKeepsErrorMessage(t *testing.T) {
	svc, mock, enq := newTestService(t)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-1", "FAILED", "selector not found", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", models.StatusFailed))

	app, err := svc.Complete(context.Background(), "app-1", models.CompletionReport{
		Status:       models.StatusFailed,
		ErrorMessage: "selector not found",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, app.Status)
	assert.Equal(t, 1, enq.failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Complete_DuplicateReportIsNoOp(t *testing.T) {
	svc, mock, enq := newTestService(t)

	// Status guard matches zero rows: the record is already SUCCESS.
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", models.StatusSuccess))

	app, err := svc.Complete(context.Background(), "app-1", models.CompletionReport{
		Status: models.StatusSuccess,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, app.Status)
	assert.Zero(t, enq.completed, "duplicate report must not bump counters again")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Complete_ConflictingReportRejected(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", models.StatusSuccess))

	_, err := svc.Complete(context.Background(), "app-1", models.CompletionReport{
		Status:       models.StatusFailed,
		ErrorMessage: "late failure",
	})

	require.Error(t, err)
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeInvalidStatusTransition, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Complete_UnknownApplication(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT id, user_id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(applicationColumns()))

	_, err := svc.Complete(context.Background(), "missing", models.CompletionReport{
		Status: models.StatusSuccess,
	})

	require.Error(t, err)
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeApplicationNotFound, stdErr.Code)
}

func TestService_Complete_NonTerminalStatusRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Complete(context.Background(), "app-1", models.CompletionReport{
		Status: models.StatusPending,
	})

	require.Error(t, err)
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeValidationFailed, stdErr.Code)
}

// ==========================
// Query Tests
// ==========================

func TestService_Stats(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT status, COUNT`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SUCCESS", 3).
			AddRow("FAILED", 1).
			AddRow("PENDING", 2))

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	stats, err := svc.Stats(context.Background(), "user-001")

	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Total)
	assert.Equal(t, int64(2), stats.AppliedToday)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
	assert.Equal(t, int64(3), stats.ByStatus["SUCCESS"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
