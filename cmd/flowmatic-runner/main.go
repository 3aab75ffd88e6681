package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowmatic/flowmatic/pkg/log"
)

func main() {
	logger := log.WithModule("runner")

	command := &cli.Command{
		Name:                  "flowmatic-runner",
		Usage:                 "Drain the run queue and execute workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the run queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "worker-id",
				Usage:   "Stable identifier for this runner instance",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "schedules-file",
				Usage:   "JSON file with cron schedule entries (optional)",
				Sources: cli.EnvVars("SCHEDULES_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			runner := NewRunner(logger, RunnerConfig{
				DatabaseURL:   command.String("database-url"),
				EventBus:      command.String("event-bus"),
				RedisAddr:     command.String("redis-addr"),
				WorkerID:      command.String("worker-id"),
				SchedulesFile: command.String("schedules-file"),
			})

			return runner.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Runner exited with error", "error", err)
		os.Exit(1)
	}
}
