// Package workflow orchestrates workflow graph execution: loading the
// definition, driving the breadth-first traversal and persisting
// durable execution and step records.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmatic/flowmatic/pkg/eventbus"
	"github.com/flowmatic/flowmatic/pkg/events"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/otelhelper"
	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/registry"
)

// RunRequest describes one requested workflow run. The JSON shape is
// what the run queue carries.
type RunRequest struct {
	WorkflowID  string         `json:"workflow_id"`
	UserID      string         `json:"user_id,omitempty"`
	TriggerType string         `json:"trigger_type,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// Executor drives one workflow run at a time. Executions are isolated:
// each run gets a fresh context, so one Executor may serve concurrent
// runs.
type Executor struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	workerID    string
}

// ExecutorOption configures optional executor collaborators.
type ExecutorOption func(*Executor)

// WithPublisher sets the event publisher for lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) ExecutorOption {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

// WithTracer sets the tracer for execution and node spans.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithWorkerID stamps published events with the worker's identity.
func WithWorkerID(workerID string) ExecutorOption {
	return func(e *Executor) {
		e.workerID = workerID
	}
}

// NewExecutor creates an executor.
func NewExecutor(logger *slog.Logger, store persistence.Persistence, reg *registry.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:      logger.With("module", "workflow_executor"),
		persistence: store,
		registry:    reg,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs the workflow and returns its execution record. Every
// run-level failure, including a missing or inactive workflow, is
// reported through the record's failed status; the error return is for
// infrastructure faults where no trustworthy record exists.
func (e *Executor) Execute(ctx context.Context, req RunRequest) (*models.WorkflowExecution, error) {
	repo := NewRepository(e.persistence)

	workflow, err := repo.FetchForExecution(ctx, req.WorkflowID, req.UserID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) || errors.Is(err, ErrWorkflowInactive) {
			return e.refuse(ctx, req, err), nil
		}

		return nil, err
	}

	execution := &models.WorkflowExecution{
		ID:          "exec-" + uuid.NewString(),
		WorkflowID:  workflow.ID,
		UserID:      workflow.UserID,
		Status:      models.ExecutionStatusRunning,
		TriggerType: req.TriggerType,
		TriggerData: req.TriggerData,
		StartedAt:   time.Now().UTC(),
	}

	if err := e.persistence.Executions().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
	)
	logger.InfoContext(ctx, "starting workflow execution")

	e.publish(ctx, workflow.ID, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID: execution.ID,
		UserID:      workflow.UserID,
	})

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
			attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		)
		defer span.End()
	}

	execCtx := e.buildContext(ctx, workflow, execution, logger)

	trigger, err := workflow.TriggerNode()
	if err != nil {
		// Reported as a failed execution with zero step rows, not an
		// error return.
		e.finishFailed(ctx, execution, "GRAPH_NO_TRIGGER: "+err.Error(), "")

		return execution, nil
	}

	e.traverse(ctx, workflow, trigger, execution, execCtx)

	if !execution.IsTerminal() {
		e.finishCompleted(ctx, execution)
	}

	return execution, nil
}

// buildContext assembles the fresh per-run execution context, seeding
// variables from the workflow definition and loading the owner's
// integration connections as a static snapshot.
func (e *Executor) buildContext(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, logger *slog.Logger) *models.ExecutionContext {
	execCtx := models.NewExecutionContext(workflow.ID, execution.ID, workflow.UserID, execution.TriggerData)
	execCtx.Logger = logger

	for key, value := range workflow.Variables {
		execCtx.Variables[key] = value
	}

	connections, err := e.persistence.Connections().ListByUser(ctx, workflow.UserID)
	if err != nil {
		logger.WarnContext(ctx, "failed to load integration connections", "error", err)

		return execCtx
	}

	for _, connection := range connections {
		execCtx.Connections[connection.Provider] = connection
	}

	return execCtx
}

// traverse performs the breadth-first walk. The visited set is the sole
// cycle-breaker: no node executes twice in one run, and cycles are not
// reported separately.
func (e *Executor) traverse(ctx context.Context, workflow *models.Workflow, trigger *models.Node, execution *models.WorkflowExecution, execCtx *models.ExecutionContext) {
	edgeMap := workflow.EdgeMap()
	visited := make(map[string]bool, len(workflow.Nodes))
	queue := []*models.Node{trigger}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if visited[node.ID] {
			continue
		}

		visited[node.ID] = true

		result, err := e.executeNode(ctx, node, execCtx, execution)
		if err != nil {
			execution.FailureCount++
			e.finishFailed(ctx, execution, err.Error(), node.ID)

			return
		}

		if !result.Success {
			execution.FailureCount++
			e.finishFailed(ctx, execution, result.Error, node.ID)

			return
		}

		execution.SuccessCount++
		execCtx.SetStepOutput(node.ID, result.Output)

		if !result.ShouldContinue {
			return
		}

		for _, next := range e.nextNodes(workflow, edgeMap, node, result) {
			queue = append(queue, next)
		}
	}
}

// nextNodes resolves the successors to enqueue: the runner's explicit
// override first, then port-matched edges, otherwise every outgoing
// edge. Edge targets that don't resolve to a node are skipped.
func (e *Executor) nextNodes(workflow *models.Workflow, edgeMap map[string][]*models.Edge, node *models.Node, result *nodeResult) []*models.Node {
	if result.NextNodeIDs != nil {
		nodes := make([]*models.Node, 0, len(result.NextNodeIDs))

		for _, id := range result.NextNodeIDs {
			if next, ok := workflow.NodeByID(id); ok {
				nodes = append(nodes, next)
			}
		}

		return nodes
	}

	edges := edgeMap[node.ID]
	nodes := make([]*models.Node, 0, len(edges))

	for _, edge := range edges {
		if result.Port != "" && edge.SourceHandle != "" && edge.SourceHandle != result.Port {
			continue
		}

		if next, ok := workflow.NodeByID(edge.Target); ok {
			nodes = append(nodes, next)
		}
	}

	return nodes
}

// nodeResult is the executor's view of one node run.
type nodeResult struct {
	Success        bool
	Output         any
	Error          string
	ShouldContinue bool
	Port           string
	NextNodeIDs    []string
}

// executeNode runs one node inside a durable step record: the row is
// inserted as running before the runner executes and updated to a
// terminal status exactly once afterwards. Runner panics are contained
// here and surface as a failed step.
func (e *Executor) executeNode(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext, execution *models.WorkflowExecution) (result *nodeResult, err error) {
	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		)

		defer func() {
			switch {
			case err != nil:
				otelhelper.MarkFailed(span, err)
			case result != nil && !result.Success:
				otelhelper.MarkFailed(span, errors.New(result.Error))
			}

			span.End()
		}()
	}

	step := &models.ExecutionStep{
		ID:          "step-" + uuid.NewString(),
		ExecutionID: execution.ID,
		StepID:      node.ID,
		Status:      models.StepStatusRunning,
		InputData:   node.Data,
		StartedAt:   time.Now().UTC(),
	}

	if saveErr := e.persistence.Executions().SaveStep(ctx, step); saveErr != nil {
		return nil, fmt.Errorf("failed to create step record for node %s: %w", node.ID, saveErr)
	}

	defer func() {
		if r := recover(); r != nil {
			execCtx.Logger.ErrorContext(ctx, "runner panicked", "node_id", node.ID, "panic", r)

			result = &nodeResult{
				Success: false,
				Error:   fmt.Sprintf("RUNNER_PANIC: node %s: %v", node.ID, r),
			}
		}

		e.finishStep(ctx, step, result, err)
	}()

	runner, createErr := e.registry.CreateRunner(ctx, node)
	if createErr != nil {
		result = &nodeResult{
			Success: false,
			Error:   fmt.Sprintf("NODE_CONFIG: %v", createErr),
		}

		return result, nil
	}

	runnerResult, execErr := runner.Execute(ctx, node, execCtx)
	if execErr != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, execErr)
	}

	result = &nodeResult{
		Success:        runnerResult.Success,
		Output:         runnerResult.Output,
		Error:          runnerResult.Error,
		ShouldContinue: runnerResult.ShouldContinue,
		Port:           runnerResult.Port,
		NextNodeIDs:    runnerResult.NextNodeIDs,
	}

	return result, nil
}

// finishStep stamps the step row with its terminal status and publishes
// the step event.
func (e *Executor) finishStep(ctx context.Context, step *models.ExecutionStep, result *nodeResult, execErr error) {
	completed := time.Now().UTC()
	step.CompletedAt = &completed
	step.DurationMs = completed.Sub(step.StartedAt).Milliseconds()

	switch {
	case execErr != nil:
		step.Status = models.StepStatusFailed
		step.ErrorMessage = execErr.Error()
	case result != nil && result.Success:
		step.Status = models.StepStatusCompleted
		step.OutputData = result.Output
	default:
		step.Status = models.StepStatusFailed
		if result != nil {
			step.ErrorMessage = result.Error
		}
	}

	if err := e.persistence.Executions().UpdateStep(ctx, step); err != nil {
		e.logger.ErrorContext(ctx, "failed to update step record", "step_id", step.StepID, "error", err)
	}

	e.publish(ctx, step.ExecutionID, events.StepFinished{
		BaseEvent:   e.baseEvent(events.StepFinishedEvent, ""),
		ExecutionID: step.ExecutionID,
		NodeID:      step.StepID,
		Status:      step.Status,
		Error:       step.ErrorMessage,
		DurationMs:  step.DurationMs,
	})
}

// finishCompleted transitions the execution to completed exactly once.
func (e *Executor) finishCompleted(ctx context.Context, execution *models.WorkflowExecution) {
	completed := time.Now().UTC()
	durationMs := completed.Sub(execution.StartedAt).Milliseconds()

	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &completed
	execution.DurationMs = &durationMs

	if err := e.persistence.Executions().UpdateExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "failed to finalize execution", "execution_id", execution.ID, "error", err)
	}

	e.publish(ctx, execution.WorkflowID, events.ExecutionCompleted{
		BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		StepCount:   execution.SuccessCount,
		Duration:    completed.Sub(execution.StartedAt),
	})
}

// finishFailed transitions the execution to failed exactly once,
// stamping the node that caused it.
// refuse reports a precondition failure (missing or inactive workflow)
// as an immediately failed execution. The record is not persisted:
// there is no runnable workflow to attach history to.
func (e *Executor) refuse(ctx context.Context, req RunRequest, cause error) *models.WorkflowExecution {
	message := "WORKFLOW_NOT_FOUND: " + cause.Error()
	if errors.Is(cause, ErrWorkflowInactive) {
		message = "WORKFLOW_INACTIVE: " + cause.Error()
	}

	e.logger.WarnContext(ctx, "workflow execution refused",
		"workflow_id", req.WorkflowID,
		"error", message,
	)

	now := time.Now().UTC()
	durationMs := int64(0)

	return &models.WorkflowExecution{
		ID:           "exec-" + uuid.NewString(),
		WorkflowID:   req.WorkflowID,
		UserID:       req.UserID,
		Status:       models.ExecutionStatusFailed,
		TriggerType:  req.TriggerType,
		TriggerData:  req.TriggerData,
		StartedAt:    now,
		CompletedAt:  &now,
		DurationMs:   &durationMs,
		ErrorMessage: message,
	}
}

func (e *Executor) finishFailed(ctx context.Context, execution *models.WorkflowExecution, message, errorStep string) {
	completed := time.Now().UTC()
	durationMs := completed.Sub(execution.StartedAt).Milliseconds()

	execution.Status = models.ExecutionStatusFailed
	execution.CompletedAt = &completed
	execution.DurationMs = &durationMs
	execution.ErrorMessage = message
	execution.ErrorStep = errorStep

	if err := e.persistence.Executions().UpdateExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "failed to finalize execution", "execution_id", execution.ID, "error", err)
	}

	e.logger.WarnContext(ctx, "workflow execution failed",
		"execution_id", execution.ID,
		"error_step", errorStep,
		"error", message,
	)

	e.publish(ctx, execution.WorkflowID, events.ExecutionFailed{
		BaseEvent:   e.baseEvent(events.ExecutionFailedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		Error:       message,
		ErrorStep:   errorStep,
		Duration:    completed.Sub(execution.StartedAt),
	})
}

func (e *Executor) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = e.workerID

	return base
}

// publish sends an event when a publisher is configured. Event delivery
// is best-effort and never affects the execution outcome.
func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
