package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/queue"
	"github.com/nikhilbhutani/metaprompt/internal/queue/workers"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	checker, err := safety.NewDefault(safety.Thresholds(cfg.Safety.Levels))
	if err != nil {
		slog.Error("failed to build safety checker", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	screenWorker := workers.NewScreenWorker(guardrails.NewPipeline(checker, cfg.Safety))
	registry.Register(queue.TypeOutputScreen, asynq.HandlerFunc(screenWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
