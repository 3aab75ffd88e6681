package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/models"
)

func TestActionLogRendersTemplate(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"action":  "log",
		"message": "hello {{.variables.name}}",
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	execCtx.Variables["name"] = "world"
	node := &models.Node{ID: "action-1", Type: models.NodeTypeAction}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, execCtx.Logs, 1)
	assert.Equal(t, "hello world", execCtx.Logs[0].Message)
}

func TestActionSetVariable(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"action":   "set_variable",
		"variable": "total",
		"value":    "{{.steps.calc.result}}",
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	execCtx.SetStepOutput("calc", map[string]any{"result": 42.0})
	node := &models.Node{ID: "action-1", Type: models.NodeTypeAction}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 42.0, execCtx.Variables["total"])
}

func TestActionDelayRespectsCancellation(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"action":  "delay",
		"seconds": 30.0,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	node := &models.Node{ID: "action-1", Type: models.NodeTypeAction}

	start := time.Now()
	result, err := runner.Execute(ctx, node, execCtx)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "ACTION_CANCELLED")
	assert.Less(t, time.Since(start), time.Second)
}

func TestActionRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{"missing action", map[string]any{}},
		{"unknown kind", map[string]any{"action": "explode"}},
		{"set_variable without name", map[string]any{"action": "set_variable"}},
		{"delay too long", map[string]any{"action": "delay", "seconds": 3600.0}},
		{"delay negative", map[string]any{"action": "delay", "seconds": -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.config)
			assert.Error(t, err)
		})
	}
}
