// Package applications owns the persistent application record lifecycle:
// creation with duplicate guard, the single PENDING to SUCCESS/FAILED
// transition, and per-user queries.
package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"applyflow/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no application matches the lookup.
var ErrNotFound = errors.New("applications: not found")

// Store persists application records in Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ExistsForUserAndJob reports whether the user already has an application for
// the job. The (user_id, job_id) pair is unique by design; duplicate-apply is
// rejected before anything is enqueued.
func (s *Store) ExistsForUserAndJob(ctx context.Context, userID, jobID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE user_id = $1 AND job_id = $2)`,
		userID, jobID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("applications: exists check: %w", err)
	}
	return exists, nil
}

// Create inserts a new PENDING record and returns it.
func (s *Store) Create(ctx context.Context, userID, jobID, resumeID string) (*models.Application, error) {
	now := time.Now().UTC()
	app := &models.Application{
		ID:        uuid.NewString(),
		UserID:    userID,
		JobID:     jobID,
		ResumeID:  resumeID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (id, user_id, job_id, resume_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID, app.UserID, app.JobID, app.ResumeID, string(app.Status), app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("applications: insert: %w", err)
	}
	return app, nil
}

// Delete removes a record. Used to roll back creation when the matching
// queue enqueue fails.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("applications: delete: %w", err)
	}
	return nil
}

// Complete applies the terminal transition. The status guard makes the
// operation idempotent: a repeated report of the same terminal state matches
// zero rows and the caller resolves it against the current record.
func (s *Store) Complete(ctx context.Context, id string, status models.ApplicationStatus, errorMessage string, appliedAt *time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications
		 SET status = $2, error_message = $3, applied_at = $4, updated_at = $5
		 WHERE id = $1 AND status = 'PENDING'`,
		id, string(status), errorMessage, appliedAt, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("applications: complete: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("applications: complete: %w", err)
	}
	return affected == 1, nil
}

// GetByID fetches a single record.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, job_id, resume_id, status, applied_at, error_message, created_at, updated_at
		 FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

// GetByUserAndJob fetches the user's record for a specific job.
func (s *Store) GetByUserAndJob(ctx context.Context, userID, jobID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, job_id, resume_id, status, applied_at, error_message, created_at, updated_at
		 FROM applications WHERE user_id = $1 AND job_id = $2`, userID, jobID)
	return scanApplication(row)
}

// ListByUser returns the user's applications, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, job_id, resume_id, status, applied_at, error_message, created_at, updated_at
		 FROM applications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("applications: list: %w", err)
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		app, err := scanApplicationRow(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// Stats aggregates the user's application counts.
func (s *Store) Stats(ctx context.Context, userID string) (*models.ApplicationStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM applications WHERE user_id = $1 GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("applications: stats: %w", err)
	}
	defer rows.Close()

	stats := &models.ApplicationStats{ByStatus: map[string]int64{}}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("applications: stats scan: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var appliedToday int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE user_id = $1 AND created_at >= date_trunc('day', now() AT TIME ZONE 'utc')`,
		userID,
	).Scan(&appliedToday)
	if err != nil {
		return nil, fmt.Errorf("applications: stats today: %w", err)
	}
	stats.AppliedToday = appliedToday

	if done := stats.ByStatus[string(models.StatusSuccess)] + stats.ByStatus[string(models.StatusFailed)]; done > 0 {
		stats.SuccessRate = float64(stats.ByStatus[string(models.StatusSuccess)]) / float64(done)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row *sql.Row) (*models.Application, error) {
	app, err := scanApplicationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

func scanApplicationRow(row rowScanner) (*models.Application, error) {
	var app models.Application
	var status string
	var appliedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(&app.ID, &app.UserID, &app.JobID, &app.ResumeID, &status,
		&appliedAt, &errorMessage, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("applications: scan: %w", err)
	}

	app.Status = models.ApplicationStatus(status)
	if appliedAt.Valid {
		t := appliedAt.Time
		app.AppliedAt = &t
	}
	if errorMessage.Valid {
		app.ErrorMessage = errorMessage.String
	}
	return &app, nil
}
