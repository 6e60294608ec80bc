package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"centrist/internal/pipeline"
	"centrist/internal/store"
	"centrist/internal/telemetry"
	"centrist/repository/redis_repository"
)

// RunsHandler exposes pipeline runs over HTTP. Runs execute in the
// background; the handler returns the run ID immediately and the run
// becomes readable once archived.
type RunsHandler struct {
	Store     *store.Store
	Cache     *redis_repository.SummaryCache
	Pipeline  *pipeline.Pipeline
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/runs", h.create)
	g.GET("/runs", h.list)
	g.GET("/runs/:id", h.get)
	g.GET("/runs/:id/summary", h.summary)
	g.GET("/stats", h.stats)
}

type createRunRequest struct {
	Query string `json:"query"`
}

func (h *RunsHandler) create(c echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	runID := uuid.NewString()
	go func() {
		// The run outlives the HTTP request.
		if _, err := h.Pipeline.ExecuteAs(context.Background(), runID, query); err != nil {
			h.Logger.Printf("run %s failed: %v", runID, err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID, "query": query})
}

func (h *RunsHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.Store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	rec, err := h.Store.GetRun(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *RunsHandler) summary(c echo.Context) error {
	id := c.Param("id")
	if h.Cache != nil {
		if entry, err := h.Cache.GetByRunID(c.Request().Context(), id); err == nil {
			return c.String(http.StatusOK, entry.Summary)
		}
	}
	rec, err := h.Store.GetRun(c.Request().Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, rec.Summary)
}

func (h *RunsHandler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Telemetry.Snapshot())
}
