// Package scheduler runs the daily auto-apply pass: it walks active per-user
// automation schedules and submits applications to high-scoring jobs up to
// each user's daily limit.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"applyflow/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrScheduleNotFound is returned when a user has no automation schedule.
var ErrScheduleNotFound = errors.New("scheduler: schedule not found")

// Store persists automation schedules in Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert creates or replaces the user's schedule. One schedule per user.
func (s *Store) Upsert(ctx context.Context, schedule models.AutomationSchedule) (*models.AutomationSchedule, error) {
	now := time.Now().UTC()
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO automation_schedules (id, user_id, cron_expression, max_jobs_per_day, platforms, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   cron_expression = EXCLUDED.cron_expression,
		   max_jobs_per_day = EXCLUDED.max_jobs_per_day,
		   platforms = EXCLUDED.platforms,
		   is_active = EXCLUDED.is_active,
		   updated_at = EXCLUDED.updated_at`,
		schedule.ID, schedule.UserID, schedule.CronExpression, schedule.MaxJobsPerDay,
		pq.Array(schedule.Platforms), schedule.IsActive, schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler: upsert: %w", err)
	}
	return &schedule, nil
}

// GetByUser fetches the user's schedule.
func (s *Store) GetByUser(ctx context.Context, userID string) (*models.AutomationSchedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, cron_expression, max_jobs_per_day, platforms, is_active, created_at, updated_at
		 FROM automation_schedules WHERE user_id = $1`, userID)

	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return schedule, err
}

// ListActive returns every active schedule for the daily run.
func (s *Store) ListActive(ctx context.Context) ([]models.AutomationSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, cron_expression, max_jobs_per_day, platforms, is_active, created_at, updated_at
		 FROM automation_schedules WHERE is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list active: %w", err)
	}
	defer rows.Close()

	var schedules []models.AutomationSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*models.AutomationSchedule, error) {
	var schedule models.AutomationSchedule
	err := row.Scan(&schedule.ID, &schedule.UserID, &schedule.CronExpression,
		&schedule.MaxJobsPerDay, pq.Array(&schedule.Platforms), &schedule.IsActive,
		&schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scheduler: scan: %w", err)
	}
	return &schedule, nil
}
