package web

import (
	"github.com/gofiber/fiber/v3"
)

// Register mounts every API route on the app.
func Register(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)

	workflows := app.Group("/workflows")
	workflows.Get("/", handlers.GetWorkflows)
	workflows.Post("/", handlers.CreateWorkflow)
	workflows.Get("/:id", handlers.GetWorkflow)
	workflows.Patch("/:id", handlers.UpdateWorkflow)
	workflows.Delete("/:id", handlers.DeleteWorkflow)
	workflows.Get("/:id/validate", handlers.ValidateWorkflow)
	workflows.Post("/:id/execute", handlers.ExecuteWorkflow)

	executions := app.Group("/executions")
	executions.Get("/", handlers.GetExecutions)
	executions.Get("/:id", handlers.GetExecution)
	executions.Get("/:id/steps", handlers.GetExecutionSteps)

	tools := app.Group("/tools")
	tools.Get("/", handlers.GetTools)
	tools.Post("/", handlers.CreateTool)
	tools.Get("/:id", handlers.GetTool)
	tools.Patch("/:id", handlers.UpdateTool)
	tools.Delete("/:id", handlers.DeleteTool)
	tools.Post("/:id/run", handlers.RunTool)
	tools.Post("/:id/test-run", handlers.TestRunTool)
	tools.Post("/:id/publish", handlers.PublishTool)
	tools.Get("/:id/resolver", handlers.GetToolResolver)
}
