package toolbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowmatic/flowmatic/pkg/eventbus"
	"github.com/flowmatic/flowmatic/pkg/events"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// Engine runs tools end to end: load, validate input, compile, interpret,
// count the outcome. It is the ToolInvoker the workflow tool runner
// calls into.
type Engine struct {
	logger    *slog.Logger
	store     persistence.Persistence
	env       Env
	publisher eventbus.EventPublisher
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithPublisher attaches an event publisher for tool.invoked events.
func WithPublisher(publisher eventbus.EventPublisher) EngineOption {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// NewEngine creates a tool engine backed by the given store and
// server-side capabilities.
func NewEngine(logger *slog.Logger, store persistence.Persistence, env Env, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		logger: logger.With("module", "toolbuilder"),
		store:  store,
		env:    env,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// InvokeTool executes a published tool against an input record. Run
// outcomes are counted on the tool record either way; input validation
// failures count as failed runs.
func (e *Engine) InvokeTool(ctx context.Context, toolID string, input map[string]any) (map[string]any, error) {
	tool, err := e.store.Tools().GetByID(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool %s: %w", toolID, err)
	}

	if !tool.IsPublished() {
		return nil, fmt.Errorf("TOOL_NOT_PUBLISHED: tool %s has status %s", toolID, tool.Status)
	}

	started := time.Now()

	output, runErr := e.runTool(ctx, tool, input)

	duration := time.Since(started)

	e.recordOutcome(ctx, tool, runErr)
	e.publishInvoked(ctx, tool, runErr, duration)

	if runErr != nil {
		e.logger.WarnContext(ctx, "Tool run failed",
			"tool_id", toolID, "error", runErr.Error())

		return nil, runErr
	}

	e.logger.InfoContext(ctx, "Tool run completed",
		"tool_id", toolID, "duration_ms", duration.Milliseconds())

	return output, nil
}

// TestRun executes an unsaved tool definition, bypassing the publish
// gate and the run counters. The builder preview uses this.
func (e *Engine) TestRun(ctx context.Context, tool *models.Tool, input map[string]any) (map[string]any, error) {
	return e.runTool(ctx, tool, input)
}

// GenerateResolver compiles a tool's logic and emits it as standalone
// resolver source.
func (e *Engine) GenerateResolver(ctx context.Context, toolID string) (string, error) {
	tool, err := e.store.Tools().GetByID(ctx, toolID)
	if err != nil {
		return "", fmt.Errorf("failed to load tool %s: %w", toolID, err)
	}

	program, err := Compile(tool)
	if err != nil {
		return "", fmt.Errorf("failed to compile tool %s: %w", toolID, err)
	}

	return program.GenerateJS(), nil
}

// Publish moves a tool to published after the safety scan passes.
func (e *Engine) Publish(ctx context.Context, toolID string) (*models.Tool, error) {
	tool, err := e.store.Tools().GetByID(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool %s: %w", toolID, err)
	}

	// Compilation problems should surface at publish time, not on the
	// first invocation.
	if _, err := Compile(tool); err != nil {
		return nil, fmt.Errorf("tool %s does not compile: %w", toolID, err)
	}

	if err := CheckPublishable(tool); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tool.Status = models.ToolStatusPublished
	tool.PublishedAt = &now
	tool.UpdatedAt = now

	if err := e.store.Tools().Save(ctx, tool); err != nil {
		return nil, fmt.Errorf("failed to save tool %s: %w", toolID, err)
	}

	return tool, nil
}

func (e *Engine) runTool(ctx context.Context, tool *models.Tool, input map[string]any) (map[string]any, error) {
	normalized, err := ValidateInput(tool, input)
	if err != nil {
		return nil, err
	}

	program, err := Compile(tool)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tool %s: %w", tool.ID, err)
	}

	return program.Run(ctx, e.env, normalized)
}

func (e *Engine) recordOutcome(ctx context.Context, tool *models.Tool, runErr error) {
	tool.RunCount++

	if runErr != nil {
		tool.FailureCount++
	} else {
		tool.SuccessCount++
	}

	tool.UpdatedAt = time.Now().UTC()

	if err := e.store.Tools().Save(ctx, tool); err != nil {
		e.logger.WarnContext(ctx, "Failed to update tool run counters",
			"tool_id", tool.ID, "error", err.Error())
	}
}

func (e *Engine) publishInvoked(ctx context.Context, tool *models.Tool, runErr error, duration time.Duration) {
	if e.publisher == nil {
		return
	}

	event := events.ToolInvoked{
		BaseEvent:  events.NewBaseEvent(events.ToolInvokedEvent, ""),
		ToolID:     tool.ID,
		UserID:     tool.UserID,
		Success:    runErr == nil,
		DurationMs: duration.Milliseconds(),
	}

	if runErr != nil {
		event.Error = runErr.Error()
	}

	if err := e.publisher.Publish(ctx, tool.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish tool event",
			"tool_id", tool.ID, "error", err.Error())
	}
}
