package web

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/moogar0880/problems"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/registry"
	"github.com/flowmatic/flowmatic/pkg/toolbuilder"
	"github.com/flowmatic/flowmatic/pkg/workflow"
)

// Enqueuer accepts run requests for async execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, request workflow.RunRequest) error
}

// APIHandlers exposes workflows, executions and tools over HTTP.
type APIHandlers struct {
	repository *workflow.Repository
	executor   *workflow.Executor
	engine     *toolbuilder.Engine
	store      persistence.Persistence
	registry   *registry.Registry
	validator  *validator.Validate
	enqueuer   Enqueuer
}

// HandlerOption configures optional handler collaborators.
type HandlerOption func(*APIHandlers)

// WithEnqueuer enables the async execute path.
func WithEnqueuer(enqueuer Enqueuer) HandlerOption {
	return func(h *APIHandlers) {
		h.enqueuer = enqueuer
	}
}

// NewAPIHandlers wires the HTTP surface to its collaborators.
func NewAPIHandlers(
	repository *workflow.Repository,
	executor *workflow.Executor,
	engine *toolbuilder.Engine,
	store persistence.Persistence,
	reg *registry.Registry,
	opts ...HandlerOption,
) *APIHandlers {
	handlers := &APIHandlers{
		repository: repository,
		executor:   executor,
		engine:     engine,
		store:      store,
		registry:   reg,
		validator:  validator.New(),
	}

	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.repository.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// --- Workflows ---

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	workflows, err := h.repository.ListByUser(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.repository.Create(c.Context(), &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		UserID:      req.UserID,
		IsActive:    req.IsActive,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Variables:   req.Variables,
	})
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	found, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.Edges != nil {
		existing.Edges = req.Edges
	}

	if req.Variables != nil {
		existing.Variables = req.Variables
	}

	updated, err := h.repository.Update(c.Context(), id, existing)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	if err := h.repository.Delete(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	found, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	problems := workflow.ValidateGraph(found, h.registry)

	return c.JSON(ValidateWorkflowResponse{
		Valid:    len(problems) == 0,
		Problems: problems,
	})
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
	}

	request := workflow.RunRequest{
		WorkflowID:  id,
		UserID:      req.UserID,
		TriggerType: "api",
		TriggerData: req.TriggerData,
	}

	if req.Async {
		if h.enqueuer == nil {
			return badRequest(c, "async execution is not configured")
		}

		if err := h.enqueuer.Enqueue(c.Context(), request); err != nil {
			return internalError(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"workflow_id": id,
			"queued":      true,
		})
	}

	execution, err := h.executor.Execute(c.Context(), request)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(execution)
}

// --- Executions ---

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	opts := persistence.ListExecutionsOptions{
		WorkflowID: c.Query("workflow_id"),
		UserID:     c.Query("user_id"),
		Status:     models.ExecutionStatus(c.Query("status")),
	}

	if limit := c.Query("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil {
			return badRequest(c, "invalid limit")
		}

		opts.Limit = parsed
	}

	if offset := c.Query("offset"); offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil {
			return badRequest(c, "invalid offset")
		}

		opts.Offset = parsed
	}

	executions, err := h.store.Executions().ListExecutions(c.Context(), opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution id is required")
	}

	execution, err := h.store.Executions().GetExecution(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution id is required")
	}

	if _, err := h.store.Executions().GetExecution(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	steps, err := h.store.Executions().StepsByExecution(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"steps": steps})
}

// --- Tools ---

func (h *APIHandlers) GetTools(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	tools, err := h.store.Tools().ListByUser(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"tools": tools})
}

func (h *APIHandlers) CreateTool(c fiber.Ctx) error {
	var req CreateToolRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	tool := &models.Tool{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         models.ToolStatusDraft,
		Inputs:         req.Inputs,
		Logic:          req.Logic,
		OutputTemplate: req.OutputTemplate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Drafts must at least compile; runtime behavior is checked by
	// test runs and the publish gate.
	if _, err := toolbuilder.Compile(tool); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Tools().Save(c.Context(), tool); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(tool)
}

func (h *APIHandlers) GetTool(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	tool, err := h.store.Tools().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(tool)
}

func (h *APIHandlers) UpdateTool(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	var req UpdateToolRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tool, err := h.store.Tools().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if req.Name != nil {
		tool.Name = *req.Name
	}

	if req.Description != nil {
		tool.Description = *req.Description
	}

	if req.Inputs != nil {
		tool.Inputs = req.Inputs
	}

	if req.Logic != nil {
		tool.Logic = req.Logic
	}

	if req.OutputTemplate != nil {
		tool.OutputTemplate = *req.OutputTemplate
	}

	if _, err := toolbuilder.Compile(tool); err != nil {
		return badRequest(c, err.Error())
	}

	// Edits to a published tool demote it to draft until republished.
	if tool.Status == models.ToolStatusPublished {
		tool.Status = models.ToolStatusDraft
		tool.PublishedAt = nil
	}

	tool.UpdatedAt = time.Now().UTC()

	if err := h.store.Tools().Save(c.Context(), tool); err != nil {
		return internalError(c, err)
	}

	return c.JSON(tool)
}

func (h *APIHandlers) DeleteTool(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	if err := h.store.Tools().Delete(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RunTool(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	var req RunToolRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
	}

	output, err := h.engine.InvokeTool(c.Context(), id, req.Input)
	if err != nil {
		return h.toolRunError(c, err)
	}

	return c.JSON(fiber.Map{"output": output})
}

func (h *APIHandlers) TestRunTool(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	var req RunToolRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
	}

	tool, err := h.store.Tools().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	output, err := h.engine.TestRun(c.Context(), tool, req.Input)
	if err != nil {
		return h.toolRunError(c, err)
	}

	return c.JSON(fiber.Map{"output": output})
}

func (h *APIHandlers) PublishTool(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	published, err := h.engine.Publish(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) GetToolResolver(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "tool id is required")
	}

	source, err := h.engine.GenerateResolver(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(ResolverResponse{ToolID: id, Source: source})
}

// codePrefixed matches the step-failure message convention, e.g.
// "TRANSFORM_FAILED: ...".
var codePrefixed = regexp.MustCompile(`^[A-Z][A-Z_]+:`)

// toolRunError maps run failures: bad input is the caller's fault,
// not-found and publish-state errors pass through, and step failures
// surface as unprocessable with their code-prefixed message.
func (h *APIHandlers) toolRunError(c fiber.Ctx, err error) error {
	if toolbuilder.IsValidationError(err) {
		return badRequest(c, err.Error())
	}

	if persistence.IsToolNotFound(err) {
		return notFound(c, "tool not found")
	}

	message := err.Error()
	if codePrefixed.MatchString(message) && !strings.HasPrefix(message, "TOOL_NOT_PUBLISHED") {
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("tool_run_failed").
			WithDetail(message)

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
	}

	return handleDomainError(c, err)
}
