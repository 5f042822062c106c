// Package errors provides standardized error handling for the application
// pipeline: queue, records, search and notification layers.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeBrokerConnectionFailed ErrorCode = "BROKER_CONNECTION_FAILED"
	ErrCodeEnqueueFailed          ErrorCode = "ENQUEUE_FAILED"
	ErrCodeQueueTimeout           ErrorCode = "QUEUE_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeDuplicateApplication    ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeApplicationNotFound     ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"

	ErrCodeUnsupportedPlatform ErrorCode = "UNSUPPORTED_PLATFORM"
	ErrCodeAutomationFailed    ErrorCode = "AUTOMATION_FAILED"

	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeMatchScoringFailed     ErrorCode = "MATCH_SCORING_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewBrokerConnectionFailedError creates a retryable broker connectivity error.
func NewBrokerConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBrokerConnectionFailed,
		Message:   "Queue broker connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEnqueueFailedError creates a retryable enqueue error.
func NewEnqueueFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnqueueFailed,
		Message:   "Failed to enqueue application job",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueTimeoutError creates a retryable queue timeout error.
func NewQueueTimeoutError(op string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueTimeout,
		Message:   "Queue operation timeout",
		Details:   fmt.Sprintf("operation: %s", op),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateApplicationError creates a non-retryable duplicate application error.
func NewDuplicateApplicationError(userID, jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateApplication,
		Message:   "You have already applied to this job",
		Details:   fmt.Sprintf("userId: %s, jobId: %s", userID, jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable not-found error.
func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStatusTransitionError creates a non-retryable state machine error.
func NewInvalidStatusTransitionError(applicationID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatusTransition,
		Message:   "Application is not pending",
		Details:   fmt.Sprintf("applicationId: %s, requestedStatus: %s", applicationID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedPlatformError creates a non-retryable platform error. A bad
// platform value is a data error, not a transient fault.
func NewUnsupportedPlatformError(platform string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedPlatform,
		Message:   "Unsupported platform",
		Details:   fmt.Sprintf("platform: %s", platform),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAutomationFailedError creates a retryable platform automation error.
func NewAutomationFailedError(platform string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAutomationFailed,
		Message:   "Platform automation failed",
		Details:   fmt.Sprintf("platform: %s, error: %s", platform, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMatchScoringFailedError creates a non-retryable scoring error. Scoring
// falls back to zero instead of retrying.
func NewMatchScoringFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMatchScoringFailed,
		Message:   "Match scoring API error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended broker-level retry count per code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBrokerConnectionFailed,
		ErrCodeEnqueueFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeAutomationFailed:
		return 3

	case ErrCodeQueueTimeout:
		return 2

	default:
		return 0 // Business/data errors: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsRetryable reports whether err is a StandardError marked retryable.
// Unknown error types are treated as retryable transient faults.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return true
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BROKER") || strings.Contains(codeStr, "QUEUE") || strings.Contains(codeStr, "ENQUEUE"):
		return "QUEUE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "PLATFORM") || strings.Contains(codeStr, "AUTOMATION"):
		return "AUTOMATION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "APPLICATION") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "STATUS"):
		return "APPLICATION"
	default:
		return "OTHER"
	}
}
