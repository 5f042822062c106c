// Package users reads user profile and resume data owned by the accounts
// service. This store is read-only: writes happen elsewhere.
package users

import (
	"context"
	"database/sql"
	"errors"

	stderrors "applyflow/internal/common/errors"
)

var (
	ErrUserNotFound   = errors.New("users: user not found")
	ErrResumeNotFound = errors.New("users: no default resume")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetContact returns the user's notification targets.
func (s *Store) GetContact(ctx context.Context, userID string) (string, string, error) {
	var email, phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT email, phone FROM users WHERE id = $1`, userID).Scan(&email, &phone)
	if err == sql.ErrNoRows {
		return "", "", ErrUserNotFound
	}
	if err != nil {
		return "", "", stderrors.NewQueryExecutionFailedError("get contact", err)
	}
	return email.String, phone.String, nil
}

// GetDefaultResumeID returns the resume used for auto-apply.
func (s *Store) GetDefaultResumeID(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM resumes
		WHERE user_id = $1 AND is_default = true
		ORDER BY updated_at DESC
		LIMIT 1`, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrResumeNotFound
	}
	if err != nil {
		return "", stderrors.NewQueryExecutionFailedError("get default resume", err)
	}
	return id, nil
}

// GetResumeText returns the extracted text of the user's default resume for
// match scoring.
func (s *Store) GetResumeText(ctx context.Context, userID string) (string, error) {
	var text sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT extracted_text FROM resumes
		WHERE user_id = $1 AND is_default = true
		ORDER BY updated_at DESC
		LIMIT 1`, userID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", ErrResumeNotFound
	}
	if err != nil {
		return "", stderrors.NewQueryExecutionFailedError("get resume text", err)
	}
	return text.String, nil
}
