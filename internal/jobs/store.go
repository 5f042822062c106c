// Package jobs maintains the job catalog: Postgres persistence, an
// Elasticsearch full-text index, and resume match scoring over catalog
// listings.
package jobs

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

// ErrNotFound is returned when no job matches the lookup.
var ErrNotFound = errors.New("jobs: not found")

// ErrDuplicateURL is returned when a job with the same URL already exists.
// Discovery feeds the catalog and re-scrapes the same postings regularly.
var ErrDuplicateURL = errors.New("jobs: duplicate url")

// Store persists catalog entries in Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a catalog entry. URL is unique.
func (s *Store) Create(ctx context.Context, job models.Job) (*models.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, title, company, platform, url, description, location, salary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Title, job.Company, job.Platform, job.URL,
		job.Description, job.Location, job.Salary, job.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDuplicateURL
		}
		return nil, fmt.Errorf("jobs: insert: %w", err)
	}
	return &job, nil
}

// GetByID fetches a single catalog entry.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, company, platform, url, description, location, salary, created_at
		 FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// List returns catalog entries, newest first, optionally filtered by
// platform.
func (s *Store) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id, title, company, platform, url, description, location, salary, created_at
	          FROM jobs`
	args := []interface{}{}
	if filter.Platform != "" {
		query += ` WHERE platform = $1`
		args = append(args, filter.Platform)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobs: list: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var location, salary sql.NullString

	err := row.Scan(&job.ID, &job.Title, &job.Company, &job.Platform, &job.URL,
		&job.Description, &location, &salary, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("jobs: scan: %w", err)
	}

	job.Location = location.String
	job.Salary = salary.String
	return &job, nil
}
