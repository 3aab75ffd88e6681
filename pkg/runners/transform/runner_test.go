package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/models"
)

func TestTransformAppliesFunctionToField(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"function": "uppercase",
		"field":    "name",
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	execCtx.Variables["name"] = "hello"
	node := &models.Node{ID: "transform-1", Type: models.NodeTypeTransform}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "HELLO", result.Output)
}

func TestTransformResolvesStepOutputPath(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"function": "format_currency",
		"field":    "steps.fetch.amount",
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	execCtx.SetStepOutput("fetch", map[string]any{"amount": 1234.5})
	node := &models.Node{ID: "transform-1", Type: models.NodeTypeTransform}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "$1,234.50", result.Output)
}

func TestTransformMissingField(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"function": "uppercase",
		"field":    "missing",
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	node := &models.Node{ID: "transform-1", Type: models.NodeTypeTransform}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "TRANSFORM_FIELD_MISSING")
}

func TestTransformUnknownFunction(t *testing.T) {
	runner, err := NewRunner(map[string]any{
		"function": "reverse_entropy",
		"field":    "name",
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", nil)
	execCtx.Variables["name"] = "hello"
	node := &models.Node{ID: "transform-1", Type: models.NodeTypeTransform}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "TRANSFORM_FAILED")
}
