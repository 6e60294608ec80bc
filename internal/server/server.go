package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"centrist/config"
	"centrist/internal/acquire"
	"centrist/internal/llm"
	"centrist/internal/pipeline"
	"centrist/internal/store"
	"centrist/internal/telemetry"
	"centrist/repository/redis_repository"
)

// Run assembles the pipeline and serves the HTTP API until the process
// exits. Postgres is required in server mode; Redis is optional and
// enables the summary cache plus scheduler locking.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	ctx := context.Background()

	if !cfg.Storage.Postgres.Enabled() {
		return fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)

	finder, err := acquire.NewBrowserFinder(cfg, nil)
	if err != nil {
		return err
	}
	runner := pipeline.NewTaskRunner(finder, cfg.Pipeline.TaskTimeout, nil)
	sched := pipeline.NewScheduler(runner, cfg.Pipeline.BatchSize, cfg.Pipeline.InterBatchDelay, nil)
	provider := llm.NewOpenAIProvider(cfg.LLM)
	synth := pipeline.NewSynthesizer(provider, cfg.LLM.Routing.SynthesisModel(), cfg.Pipeline.MaxArticleChars, tele, nil)

	sinks := []pipeline.Sink{st}

	var rdb *redis.Client
	var cache *redis_repository.SummaryCache
	if cfg.Storage.Redis.Enabled() {
		rdb, err = redis_repository.Conn(ctx, cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
		if err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
		cache = redis_repository.NewSummaryCache(rdb, cfg.Storage.Redis.CacheTTL)
		sinks = append(sinks, cache)
	}

	pipe := pipeline.NewPipeline(sched, synth, cfg.Sources, sinks, tele, nil)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tele.Handler()))

	api := e.Group("/api")
	rh := &RunsHandler{Store: st, Cache: cache, Pipeline: pipe, Telemetry: tele, Logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags)}
	rh.Register(api)
	qh := &QueriesHandler{Store: st}
	qh.Register(api)

	var locker runLocker
	if rdb != nil {
		locker = &redisLocker{rdb: rdb}
	}
	runSched := &Scheduler{Store: st, Pipeline: pipe, Locker: locker, Stop: make(chan struct{})}
	runSched.Start()
	defer close(runSched.Stop)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
