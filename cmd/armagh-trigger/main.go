// Armagh Trigger — планировщик collect- и utility-действий.
//
// Процесс:
//   - Раз в секунду сверяет cron-расписания активных действий
//   - Вставляет trigger-документы в рабочий пул
//   - Периодически возвращает документы с протухшими блокировками
//
// Запуск нескольких экземпляров безопасен: повторные trigger-документы
// схлопываются уникальным индексом хранилища.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armagh-dev/armag-sub002/internal/store"
	"github.com/armagh-dev/armag-sub002/internal/telemetry"
	"github.com/armagh-dev/armag-sub002/internal/trigger"
	"github.com/armagh-dev/armag-sub002/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting armagh-trigger")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := store.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	docStore := store.New(pool, store.Config{Signature: "trigger"}, logger)
	cfgRepo := store.NewWorkflowConfigRepo(pool)

	workflowName := os.Getenv("WORKFLOW_NAME")
	if workflowName == "" {
		workflowName = "default"
	}
	// Trigger не выполняет действия, registry ему не нужен
	resolver := workflow.NewResolver(workflow.NewConfigSource(cfgRepo, workflowName), nil, logger)

	sweepInterval := time.Minute
	if v := os.Getenv("LOCK_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid LOCK_SWEEP_INTERVAL", "value", v)
			os.Exit(1)
		}
		sweepInterval = d
	}

	t := trigger.New(trigger.Config{
		Store:         docStore,
		Resolver:      resolver,
		Sweeper:       docStore,
		SweepInterval: sweepInterval,
		Logger:        logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8091"
	if v := os.Getenv("TRIGGER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := t.Run(ctx); err != nil {
		logger.Error("trigger failed", "error", err)
		os.Exit(1)
	}
	logger.Info("armagh-trigger stopped")
}
