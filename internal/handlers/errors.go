package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/middleware"
)

// HTTPErrorHandler renders every error returned by a handler as an
// ErrorResponse. Account failures keep their status and message, echo
// HTTP errors keep their status, and anything else is logged and
// reported as a 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, resp := http.StatusInternalServerError, ErrorResponse{
		Code:    domain.KindInternal.String(),
		Message: "internal error",
	}

	var (
		de *domain.Error
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &de) && de.Kind != domain.KindInternal && de.Status != 0:
		status, resp = de.Status, ErrorResponse{Code: de.Kind.String(), Message: de.Message}
	case errors.As(err, &he) && he.Code < http.StatusInternalServerError:
		status = he.Code
		resp = ErrorResponse{Code: codeForStatus(he.Code), Message: fmt.Sprint(he.Message)}
	default:
		middleware.FromContext(c.Request().Context()).Error("Internal Server Error (Unhandled)",
			"path", c.Path(), "error", err, "stack_trace", string(debug.Stack()))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to write error response", "error", err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return domain.KindUnauthorized.String()
	case http.StatusNotFound:
		return domain.KindNotFound.String()
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "error"
	}
}

// bindAndValidate decodes the request body into req and applies its
// validate tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
