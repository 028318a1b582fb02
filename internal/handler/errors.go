package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

var statusByCode = map[string]int{
	"VALIDATION_ERROR":           http.StatusBadRequest,
	"NOT_FOUND":                  http.StatusNotFound,
	"FORBIDDEN":                  http.StatusForbidden,
	"INVALID_CREDENTIALS":        http.StatusUnauthorized,
	"CONCURRENT_MODIFICATION":    http.StatusConflict,
	"DUPLICATE_RESOURCE":         http.StatusConflict,
	"INVALID_STATE_TRANSITION":   http.StatusUnprocessableEntity,
	"DATABASE_TRANSACTION_ERROR": http.StatusServiceUnavailable,
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	if s, ok := statusByCode[apperr.Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// respond writes err as {"error": code, "message": ..., "field": ...}.
// Messages of server-side failures are not exposed.
func respond(c echo.Context, err error) error {
	code := apperr.Code(err)
	status := StatusFor(err)
	body := echo.Map{"error": code}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		body["message"] = "internal error"
		return c.JSON(status, body)
	}
	body["message"] = err.Error()
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
		body["message"] = verr.Message
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "VALIDATION_ERROR", "message": msg})
}
