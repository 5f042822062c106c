// internal/server/validator.go
package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// AppValidator adapts go-playground/validator to echo's Validator interface.
type AppValidator struct {
	validator *validator.Validate
}

func NewAppValidator() *AppValidator {
	return &AppValidator{validator: validator.New()}
}

func (v *AppValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
