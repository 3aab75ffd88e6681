package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/models"
)

func TestTriggerPassesThroughLiveTriggerData(t *testing.T) {
	runner := NewRunner(map[string]any{})
	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", map[string]any{"email": "a@example.com"})
	node := &models.Node{ID: "trigger-1", Type: models.NodeTypeTrigger}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.ShouldContinue)
	assert.Equal(t, map[string]any{"email": "a@example.com"}, result.Output)
}

func TestTriggerPrefersConfiguredOutputData(t *testing.T) {
	runner := NewRunner(map[string]any{
		"output_data": map[string]any{"source": "manual"},
	})
	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", map[string]any{"ignored": true})
	node := &models.Node{ID: "trigger-1", Type: models.NodeTypeTrigger}

	result, err := runner.Execute(context.Background(), node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"source": "manual"}, result.Output)
}
