package web

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/toolbuilder"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps domain failures to problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	case persistence.IsToolNotFound(err):
		return notFound(c, "tool not found")

	case toolbuilder.IsValidationError(err):
		return badRequest(c, err.Error())

	case strings.HasPrefix(err.Error(), "SECURITY_ERROR"):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("security_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case strings.HasPrefix(err.Error(), "TOOL_NOT_PUBLISHED"):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("tool_not_published").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}
