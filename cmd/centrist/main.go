package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"centrist/config"
	"centrist/internal/acquire"
	"centrist/internal/llm"
	"centrist/internal/pipeline"
	srv "centrist/internal/server"
	"centrist/internal/store"
	"centrist/internal/telemetry"
)

func main() {
	var cfgPath string
	root := &cobra.Command{Use: "centrist"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var query string
	run := &cobra.Command{
		Use:   "run",
		Short: "Gather articles for a query and write a balanced summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("query required (-q)")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return oneShot(cfg, query)
		},
	}
	run.Flags().StringVarP(&query, "query", "q", "", "news topic to gather and summarize")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return srv.Run(cfg)
		},
	}

	var migDir string
	var direction string
	var steps int
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Storage.Postgres.Enabled() {
				return fmt.Errorf("postgres not configured")
			}
			return srv.Migrate(migDir, cfg.Storage.Postgres.DSN(), direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(run, serve, migrate)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// oneShot runs the pipeline once and leaves summary.txt in the output
// directory, archiving to Postgres only when one is configured.
func oneShot(cfg *config.Config, query string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tele := telemetry.NewTelemetry(cfg.Telemetry)

	finder, err := acquire.NewBrowserFinder(cfg, nil)
	if err != nil {
		return err
	}
	runner := pipeline.NewTaskRunner(finder, cfg.Pipeline.TaskTimeout, nil)
	sched := pipeline.NewScheduler(runner, cfg.Pipeline.BatchSize, cfg.Pipeline.InterBatchDelay, nil)
	provider := llm.NewOpenAIProvider(cfg.LLM)
	synth := pipeline.NewSynthesizer(provider, cfg.LLM.Routing.SynthesisModel(), cfg.Pipeline.MaxArticleChars, tele, nil)

	sinks := []pipeline.Sink{store.NewFileSink(cfg.Storage.File.OutputDir)}
	if cfg.Storage.Postgres.Enabled() {
		st, err := store.New(ctx, cfg.Storage.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer st.DB.Close()
		sinks = append(sinks, st)
	}

	pipe := pipeline.NewPipeline(sched, synth, cfg.Sources, sinks, tele, nil)
	run, err := pipe.Execute(ctx, query)
	if err != nil {
		return err
	}

	log.Printf("run %s finished: %d article(s) from %d source(s)", run.ID, run.Outcome.TotalArticles, run.Outcome.ContributingSources)
	fmt.Println(run.Summary)
	return nil
}
