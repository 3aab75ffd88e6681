// Package main provides the Flowmatic workflow runner daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/flowmatic/flowmatic/pkg/cmd"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/otelhelper"
	"github.com/flowmatic/flowmatic/pkg/queue"
	"github.com/flowmatic/flowmatic/pkg/schedule"
	"github.com/flowmatic/flowmatic/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

type RunnerConfig struct {
	DatabaseURL   string
	EventBus      string
	RedisAddr     string
	WorkerID      string
	SchedulesFile string
}

// Runner drains the Redis run queue into the workflow executor. When a
// schedules file is given it also registers cron entries that feed the
// same queue.
type Runner struct {
	logger *slog.Logger
	config RunnerConfig
}

func NewRunner(logger *slog.Logger, config RunnerConfig) *Runner {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("runner-%s", uuid.New().String()[:8])
	}

	return &Runner{
		logger: logger.With("worker_id", config.WorkerID),
		config: config,
	}
}

// Run blocks until the context is cancelled or a termination signal
// arrives, then drains in-flight work before returning.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.logger.InfoContext(ctx, "Starting runner")

	store := cmd.NewPersistence(ctx, r.logger, r.config.DatabaseURL)

	defer func() {
		if err := store.Close(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(r.config.EventBus, "flowmatic-runner", r.logger)

	defer func() {
		if err := eventBus.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	reg, _ := cmd.NewRegistry(r.logger, store, eventBus)

	executorOpts := []workflow.ExecutorOption{
		workflow.WithPublisher(eventBus),
		workflow.WithWorkerID(r.config.WorkerID),
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err := otelhelper.NewTracer(ctx, "flowmatic-runner")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		executorOpts = append(executorOpts, workflow.WithTracer(tracer))
	}

	executor := workflow.NewExecutor(r.logger, store, reg, executorOpts...)

	source := queue.NewSource(r.logger, queue.Config{Addr: r.config.RedisAddr})
	if err := source.Start(ctx, r.handleRun(executor)); err != nil {
		return fmt.Errorf("failed to start run queue source: %w", err)
	}

	scheduler, err := r.startScheduler(ctx, source)
	if err != nil {
		if stopErr := source.Stop(ctx); stopErr != nil {
			r.logger.Error("Failed to stop run queue source", "error", stopErr)
		}

		return err
	}

	r.logger.InfoContext(ctx, "Runner started", "redis_addr", r.config.RedisAddr)

	<-ctx.Done()

	r.logger.Info("Shutting down runner")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(stopCtx); err != nil {
			r.logger.Error("Scheduler shutdown incomplete", "error", err)
		}
	}

	return source.Stop(stopCtx)
}

// handleRun adapts the executor to the queue handler. Failed runs are
// recorded in the execution itself, so handler errors are reserved for
// requests the executor could not even start.
func (r *Runner) handleRun(executor *workflow.Executor) queue.RunHandler {
	return func(ctx context.Context, request workflow.RunRequest) error {
		execution, err := executor.Execute(ctx, request)
		if err != nil {
			return err
		}

		if execution.Status == models.ExecutionStatusFailed {
			r.logger.WarnContext(ctx, "Workflow run failed",
				"workflow_id", request.WorkflowID,
				"execution_id", execution.ID,
				"error", execution.ErrorMessage)
		}

		return nil
	}
}

func (r *Runner) startScheduler(ctx context.Context, enqueuer schedule.Enqueuer) (*schedule.Scheduler, error) {
	if r.config.SchedulesFile == "" {
		return nil, nil
	}

	entries, err := loadSchedules(r.config.SchedulesFile)
	if err != nil {
		return nil, err
	}

	scheduler := schedule.NewScheduler(r.logger, enqueuer)

	for _, entry := range entries {
		if err := scheduler.Add(entry); err != nil {
			return nil, fmt.Errorf("failed to register schedule for workflow %s: %w", entry.WorkflowID, err)
		}
	}

	scheduler.Start()

	r.logger.InfoContext(ctx, "Scheduler started", "entries", len(entries))

	return scheduler, nil
}

func loadSchedules(path string) ([]schedule.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules file: %w", err)
	}

	var entries []schedule.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse schedules file: %w", err)
	}

	return entries, nil
}
