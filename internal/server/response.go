// internal/server/response.go
package server

import (
	"errors"
	"net/http"

	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/common/logger"

	"github.com/labstack/echo/v4"
)

// APIError is the wire shape of a structured error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for the response body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// statusForCode maps structured error codes onto HTTP statuses. Unknown
// codes are treated as internal faults.
func statusForCode(code stderrors.ErrorCode) int {
	switch code {
	case stderrors.ErrCodeDuplicateApplication,
		stderrors.ErrCodeInvalidStatusTransition:
		return http.StatusConflict
	case stderrors.ErrCodeApplicationNotFound,
		"RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	case stderrors.ErrCodeValidationFailed,
		stderrors.ErrCodeUnsupportedPlatform,
		"BUSINESS_RULE_VIOLATION":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewHTTPErrorHandler converts StandardError and echo errors into the
// structured error envelope.
func NewHTTPErrorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var stdErr *stderrors.StandardError
		if errors.As(err, &stdErr) {
			status := statusForCode(stdErr.Code)
			if status >= http.StatusInternalServerError {
				log.Error("request failed", map[string]interface{}{
					"path":  c.Path(),
					"code":  string(stdErr.Code),
					"error": stdErr.Details,
				})
			}
			_ = c.JSON(status, ErrorEnvelope{Error: APIError{
				Code:    string(stdErr.Code),
				Message: stdErr.Message,
				Details: stdErr.Details,
			}})
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			msg, ok := httpErr.Message.(string)
			if !ok {
				msg = http.StatusText(httpErr.Code)
			}
			_ = c.JSON(httpErr.Code, ErrorEnvelope{Error: APIError{
				Code:    http.StatusText(httpErr.Code),
				Message: msg,
			}})
			return
		}

		log.Error("unhandled request error", map[string]interface{}{
			"path":  c.Path(),
			"error": err.Error(),
		})
		_ = c.JSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		}})
	}
}
