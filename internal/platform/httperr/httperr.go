// Package httperr maps service errors onto HTTP responses.
package httperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/clinic/internal/platform/db"
)

var (
	ErrInvalid  = errors.New("invalid input")
	ErrConflict = errors.New("conflict")
)

// Invalid builds a validation error that maps to 400.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// From converts err into an *echo.HTTPError. Unknown errors become a generic
// 500 so driver messages never reach the client.
func From(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case db.IsForeignKeyViolation(err):
		return echo.NewHTTPError(http.StatusBadRequest, "referenced record does not exist")
	case db.IsUniqueViolation(err):
		return echo.NewHTTPError(http.StatusConflict, "record already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
