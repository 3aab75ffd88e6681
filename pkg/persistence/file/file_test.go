package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p := NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(context.Background()))

	return p
}

func sampleWorkflow(id, userID string) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:       id,
		Name:     "Order notifications",
		UserID:   userID,
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "action-1", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "hi"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "action-1"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWorkflowRepositoryRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	workflow := sampleWorkflow("wf-1", "user-1")
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	loaded, err := p.Workflows().GetByID(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, workflow.Name, loaded.Name)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, models.NodeTypeTrigger, loaded.Nodes[0].Type)
	require.Len(t, loaded.Edges, 1)
}

func TestWorkflowRepositoryNotFound(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.Workflows().GetByID(context.Background(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepositoryListByUser(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.Workflows().Save(ctx, sampleWorkflow("wf-1", "user-1")))
	require.NoError(t, p.Workflows().Save(ctx, sampleWorkflow("wf-2", "user-1")))
	require.NoError(t, p.Workflows().Save(ctx, sampleWorkflow("wf-3", "user-2")))

	workflows, err := p.Workflows().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}

func TestExecutionRepositoryLifecycle(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		UserID:     "user-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, p.Executions().SaveExecution(ctx, execution))

	step := &models.ExecutionStep{
		ID:          "step-row-1",
		ExecutionID: "exec-1",
		StepID:      "trigger-1",
		Status:      models.StepStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, p.Executions().SaveStep(ctx, step))

	completed := time.Now().UTC()
	step.Status = models.StepStatusCompleted
	step.CompletedAt = &completed
	step.OutputData = map[string]any{"ok": true}
	require.NoError(t, p.Executions().UpdateStep(ctx, step))

	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &completed
	require.NoError(t, p.Executions().UpdateExecution(ctx, execution))

	loaded, err := p.Executions().GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)

	steps, err := p.Executions().StepsByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepStatusCompleted, steps[0].Status)
}

func TestExecutionRepositoryListFilters(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, status := range []models.ExecutionStatus{
		models.ExecutionStatusCompleted,
		models.ExecutionStatusFailed,
		models.ExecutionStatusCompleted,
	} {
		execution := &models.WorkflowExecution{
			ID:         "exec-" + string(rune('a'+i)),
			WorkflowID: "wf-1",
			UserID:     "user-1",
			Status:     status,
			StartedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, p.Executions().SaveExecution(ctx, execution))
	}

	completed, err := p.Executions().ListExecutions(ctx, persistence.ListExecutionsOptions{
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusCompleted,
	})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	limited, err := p.Executions().ListExecutions(ctx, persistence.ListExecutionsOptions{
		WorkflowID: "wf-1",
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	// Newest first.
	assert.Equal(t, "exec-c", limited[0].ID)
}

func TestToolRepositoryRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	now := time.Now().UTC()
	tool := &models.Tool{
		ID:     "tool-1",
		UserID: "user-1",
		Name:   "Discount calculator",
		Status: models.ToolStatusPublished,
		Inputs: []models.ToolInput{
			{Name: "inputNumber", Type: models.ToolInputNumber, Required: true},
		},
		Logic: []*models.LogicStep{
			{ID: "s1", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "inputNumber * 2", "output": "result"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, p.Tools().Save(ctx, tool))

	loaded, err := p.Tools().GetByID(ctx, "tool-1")
	require.NoError(t, err)
	assert.True(t, loaded.IsPublished())
	require.Len(t, loaded.Logic, 1)
	assert.Equal(t, models.LogicStepCalculation, loaded.Logic[0].Type)

	_, err = p.Tools().GetByID(ctx, "missing")
	assert.True(t, persistence.IsToolNotFound(err))
}

func TestConnectionRepositoryRoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	connection := &models.IntegrationConnection{
		ID:          "conn-1",
		UserID:      "user-1",
		Provider:    "slack",
		AccessToken: "xoxb-test",
		Scopes:      []string{"chat:write"},
	}
	require.NoError(t, p.Connections().Save(ctx, connection))

	loaded, err := p.Connections().GetByID(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "slack", loaded.Provider)

	connections, err := p.Connections().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, connections, 1)

	require.NoError(t, p.Connections().Delete(ctx, "conn-1"))
	_, err = p.Connections().GetByID(ctx, "conn-1")
	assert.True(t, persistence.IsConnectionNotFound(err))
}
