package server

import (
	"net/http"
	"strings"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"centrist/internal/store"
)

// QueriesHandler manages standing queries the scheduler re-runs.
type QueriesHandler struct {
	Store *store.Store
}

func (h *QueriesHandler) Register(g *echo.Group) {
	g.POST("/queries", h.create)
	g.GET("/queries", h.list)
	g.DELETE("/queries/:id", h.remove)
}

type createQueryRequest struct {
	Query        string `json:"query"`
	ScheduleCron string `json:"schedule_cron"`
}

func (h *QueriesHandler) create(c echo.Context) error {
	var req createQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if req.ScheduleCron != "" && req.ScheduleCron != "@daily" && req.ScheduleCron != "@hourly" {
		if _, err := cronexpr.Parse(req.ScheduleCron); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron expression")
		}
	}

	sq, err := h.Store.CreateStandingQuery(c.Request().Context(), query, req.ScheduleCron)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusConflict, "query already registered")
		}
		return err
	}
	return c.JSON(http.StatusCreated, sq)
}

func (h *QueriesHandler) list(c echo.Context) error {
	queries, err := h.Store.ListStandingQueries(c.Request().Context())
	if err != nil {
		return err
	}
	if queries == nil {
		queries = []store.StandingQuery{}
	}
	return c.JSON(http.StatusOK, queries)
}

func (h *QueriesHandler) remove(c echo.Context) error {
	if err := h.Store.DeleteStandingQuery(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
