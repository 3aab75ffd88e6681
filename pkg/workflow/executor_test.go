package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/eventbus"
	"github.com/flowmatic/flowmatic/pkg/events"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence/file"
	"github.com/flowmatic/flowmatic/pkg/registry"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
)

type nopInvoker struct{}

func (nopInvoker) InvokeTool(_ context.Context, _ string, input map[string]any) (map[string]any, error) {
	return input, nil
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	published []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func (p *capturePublisher) types() []events.EventType {
	types := make([]events.EventType, 0, len(p.published))
	for _, event := range p.published {
		types = append(types, event.GetType())
	}

	return types
}

type fixture struct {
	store     *file.Persistence
	executor  *Executor
	publisher *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.HealthCheck(context.Background()))

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults(registry.Dependencies{
		Policy:   ssrf.Policy{AllowLoopback: true},
		AIClient: &ai.StubClient{Response: "ok"},
		Tools:    nopInvoker{},
	})
	require.NoError(t, reg.Complete())

	publisher := &capturePublisher{}
	executor := NewExecutor(slog.Default(), store, reg, WithPublisher(publisher))

	return &fixture{store: store, executor: executor, publisher: publisher}
}

func (f *fixture) saveWorkflow(t *testing.T, workflow *models.Workflow) {
	t.Helper()

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	require.NoError(t, f.store.Workflows().Save(context.Background(), workflow))
}

func (f *fixture) stepIDs(t *testing.T, executionID string) []string {
	t.Helper()

	steps, err := f.store.Executions().StepsByExecution(context.Background(), executionID)
	require.NoError(t, err)

	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.StepID)
	}

	return ids
}

func TestExecuteLinearWorkflow(t *testing.T) {
	f := newFixture(t)

	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-1",
		Name:     "Linear flow",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "set-total", Type: models.NodeTypeAction, Data: map[string]any{
				"action": "set_variable", "variable": "name", "value": "ada",
			}},
			{ID: "upper", Type: models.NodeTypeTransform, Data: map[string]any{
				"function": "uppercase", "field": "name",
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "set-total"},
			{ID: "e2", Source: "set-total", Target: "upper"},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{
		WorkflowID:  "wf-1",
		UserID:      "user-1",
		TriggerType: "manual",
		TriggerData: map[string]any{"source": "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, 3, execution.SuccessCount)
	assert.Equal(t, 0, execution.FailureCount)
	require.NotNil(t, execution.CompletedAt)
	require.NotNil(t, execution.DurationMs)

	assert.Equal(t, []string{"trigger-1", "set-total", "upper"}, f.stepIDs(t, execution.ID))

	steps, err := f.store.Executions().StepsByExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "ADA", steps[2].OutputData)

	assert.Equal(t, []events.EventType{
		events.ExecutionStartedEvent,
		events.StepFinishedEvent,
		events.StepFinishedEvent,
		events.StepFinishedEvent,
		events.ExecutionCompletedEvent,
	}, f.publisher.types())
}

func TestExecuteVisitsEachNodeOnce(t *testing.T) {
	f := newFixture(t)

	// a -> b -> a is a cycle; the visited guard breaks it.
	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-cycle",
		Name:     "Cyclic graph",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "a", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "a"}},
			{ID: "b", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "b"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
			{ID: "e3", Source: "b", Target: "a"},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-cycle", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"trigger-1", "a", "b"}, f.stepIDs(t, execution.ID))
}

func TestExecuteFailsFastOnRunnerFailure(t *testing.T) {
	f := newFixture(t)

	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-fail",
		Name:     "Failing flow",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "broken", Type: models.NodeTypeTransform, Data: map[string]any{
				"function": "uppercase", "field": "no_such_field",
			}},
			{ID: "after", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "never"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "broken"},
			{ID: "e2", Source: "broken", Target: "after"},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-fail", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "broken", execution.ErrorStep)
	assert.Contains(t, execution.ErrorMessage, "TRANSFORM_FIELD_MISSING")
	assert.Equal(t, 1, execution.SuccessCount)
	assert.Equal(t, 1, execution.FailureCount)

	// Fail-fast: the downstream node never gets a step row.
	assert.Equal(t, []string{"trigger-1", "broken"}, f.stepIDs(t, execution.ID))
	assert.Contains(t, f.publisher.types(), events.ExecutionFailedEvent)
}

func TestExecuteNoTriggerNode(t *testing.T) {
	f := newFixture(t)

	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-no-trigger",
		Name:     "Headless graph",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "a"}},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-no-trigger", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "GRAPH_NO_TRIGGER")
	assert.Empty(t, f.stepIDs(t, execution.ID))
}

func TestExecuteConditionRoutesSingleBranch(t *testing.T) {
	f := newFixture(t)

	workflow := &models.Workflow{
		ID:       "wf-branch",
		Name:     "Branching flow",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "check", Type: models.NodeTypeCondition, Data: map[string]any{
				"conditions": []any{
					map[string]any{"field": "amount", "operator": "greater_than", "value": 100.0},
				},
			}},
			{ID: "big", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "big order"}},
			{ID: "small", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "small order"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "check"},
			{ID: "e2", Source: "check", Target: "big", SourceHandle: "true"},
			{ID: "e3", Source: "check", Target: "small", SourceHandle: "false"},
		},
	}
	f.saveWorkflow(t, workflow)

	execution, err := f.executor.Execute(context.Background(), RunRequest{
		WorkflowID:  "wf-branch",
		UserID:      "user-1",
		TriggerData: map[string]any{"amount": 150.0},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"trigger-1", "check", "big"}, f.stepIDs(t, execution.ID))

	execution, err = f.executor.Execute(context.Background(), RunRequest{
		WorkflowID:  "wf-branch",
		UserID:      "user-1",
		TriggerData: map[string]any{"amount": 50.0},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"trigger-1", "check", "small"}, f.stepIDs(t, execution.ID))
}

func TestExecuteBlocksInternalAPITarget(t *testing.T) {
	f := newFixture(t)

	// The test fixture allows loopback for httptest; metadata endpoints
	// stay blocked regardless.
	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-ssrf",
		Name:     "Metadata probe",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "probe", Type: models.NodeTypeAPI, Data: map[string]any{
				"url": "http://169.254.169.254/latest/meta-data/",
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "probe"},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-ssrf", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "probe", execution.ErrorStep)
	assert.Contains(t, execution.ErrorMessage, "SSRF_BLOCKED")
}

func TestExecuteOwnershipAndActivationGating(t *testing.T) {
	f := newFixture(t)

	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-owned",
		Name:     "Someone else's flow",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-owned", UserID: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "WORKFLOW_NOT_FOUND")

	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-inactive",
		Name:     "Paused flow",
		UserID:   "user-1",
		IsActive: false,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
		},
	})

	execution, err = f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-inactive", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "WORKFLOW_INACTIVE")
	require.NotNil(t, execution.CompletedAt)
}

func TestExecuteMissingWorkflowFailsWithoutRecord(t *testing.T) {
	f := newFixture(t)

	execution, err := f.executor.Execute(context.Background(), RunRequest{WorkflowID: "wf-ghost", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "WORKFLOW_NOT_FOUND")

	// Refused runs leave no history behind.
	_, err = f.store.Executions().GetExecution(context.Background(), execution.ID)
	assert.Error(t, err)
}

func TestExecuteStepOutputsVisibleDownstream(t *testing.T) {
	f := newFixture(t)

	f.saveWorkflow(t, &models.Workflow{
		ID:       "wf-outputs",
		Name:     "Output chaining",
		UserID:   "user-1",
		IsActive: true,
		Variables: map[string]any{
			"greeting": "hello",
		},
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "compose", Type: models.NodeTypeAction, Data: map[string]any{
				"action": "set_variable", "variable": "message",
				"value": "{{.variables.greeting}} {{.trigger.name}}",
			}},
			{ID: "shout", Type: models.NodeTypeTransform, Data: map[string]any{
				"function": "uppercase", "field": "message",
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "compose"},
			{ID: "e2", Source: "compose", Target: "shout"},
		},
	})

	execution, err := f.executor.Execute(context.Background(), RunRequest{
		WorkflowID:  "wf-outputs",
		UserID:      "user-1",
		TriggerData: map[string]any{"name": "world"},
	})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	steps, err := f.store.Executions().StepsByExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD", steps[2].OutputData)
}
