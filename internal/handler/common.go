package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/middleware"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
	"github.com/phamhoa2416/ticket-booking/internal/service"
)

const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses the named path parameter as a UUID.
func pathID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// caller returns the actor stored by JWTAuth. A missing actor must never
// fall through as the zero value, which is the privileged system actor.
func caller(c echo.Context) (audit.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok || a.IsSystem() {
		return audit.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return a, nil
}

func pageFrom(c echo.Context) repository.Page {
	n, _ := strconv.Atoi(c.QueryParam("page"))
	s, _ := strconv.Atoi(c.QueryParam("size"))
	return repository.Page{Number: n, Size: s}.Normalize()
}

// ifVersion turns an optional client-supplied version into a mutate option.
func ifVersion(v *int64) []service.MutateOption {
	if v == nil {
		return nil
	}
	return []service.MutateOption{service.IfVersion(*v)}
}
