// Package main provides the Flowmatic API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/flowmatic/flowmatic/pkg/cmd"
	"github.com/flowmatic/flowmatic/pkg/eventbus"
	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/queue"
	"github.com/flowmatic/flowmatic/pkg/web"
	"github.com/flowmatic/flowmatic/pkg/workflow"
)

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	eventBus eventbus.EventBus
	runQueue *queue.Source
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	runQueue *queue.Source,
) *API {
	return &API{
		logger:   logger,
		store:    store,
		eventBus: eventBus,
		runQueue: runQueue,
	}
}

func (a *API) App() *fiber.App {
	reg, engine := cmd.NewRegistry(a.logger, a.store, a.eventBus)

	repository := workflow.NewRepository(a.store)
	executor := workflow.NewExecutor(a.logger, a.store, reg,
		workflow.WithPublisher(a.eventBus))

	var opts []web.HandlerOption
	if a.runQueue != nil {
		opts = append(opts, web.WithEnqueuer(a.runQueue))
	}

	handlers := web.NewAPIHandlers(repository, executor, engine, a.store, reg, opts...)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowmatic API")
	})

	web.Register(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
