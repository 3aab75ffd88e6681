package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aiclient "github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/models"
)

func newContext() *models.ExecutionContext {
	execCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", map[string]any{"subject": "refund request"})

	return execCtx
}

func TestAIRunnerSubstitutesPrompt(t *testing.T) {
	stub := &aiclient.StubClient{Response: "summary text"}

	runner, err := NewRunner(map[string]any{
		"prompt": "Summarize: {{.trigger.subject}}",
		"system": "You are terse.",
	}, stub)
	require.NoError(t, err)

	node := &models.Node{ID: "ai-1", Type: models.NodeTypeAI}
	result, err := runner.Execute(context.Background(), node, newContext())
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, map[string]any{"text": "summary text"}, result.Output)

	require.Len(t, stub.Requests, 1)
	require.Len(t, stub.Requests[0].Messages, 2)
	assert.Equal(t, "system", stub.Requests[0].Messages[0].Role)
	assert.Equal(t, "Summarize: refund request", stub.Requests[0].Messages[1].Content)
}

func TestAIRunnerJSONOutputFormat(t *testing.T) {
	stub := &aiclient.StubClient{Response: "```json\n{\"sentiment\":\"positive\"}\n```"}

	runner, err := NewRunner(map[string]any{
		"prompt":        "Classify",
		"output_format": "json",
	}, stub)
	require.NoError(t, err)

	node := &models.Node{ID: "ai-1", Type: models.NodeTypeAI}
	result, err := runner.Execute(context.Background(), node, newContext())
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, map[string]any{"sentiment": "positive"}, result.Output)
}

func TestAIRunnerJSONOutputRejectsNonJSON(t *testing.T) {
	stub := &aiclient.StubClient{Response: "not json at all"}

	runner, err := NewRunner(map[string]any{
		"prompt":        "Classify",
		"output_format": "json",
	}, stub)
	require.NoError(t, err)

	node := &models.Node{ID: "ai-1", Type: models.NodeTypeAI}
	result, err := runner.Execute(context.Background(), node, newContext())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "AI_BAD_JSON")
}

func TestAIRunnerMapsProviderErrors(t *testing.T) {
	stub := &aiclient.StubClient{Err: aiclient.NewError(aiclient.CodeRateLimit, "slow down")}

	runner, err := NewRunner(map[string]any{"prompt": "hi"}, stub)
	require.NoError(t, err)

	node := &models.Node{ID: "ai-1", Type: models.NodeTypeAI}
	result, err := runner.Execute(context.Background(), node, newContext())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "AI_RATE_LIMIT")
}

func TestAIRunnerRejectsInvalidConfig(t *testing.T) {
	_, err := NewRunner(map[string]any{}, &aiclient.StubClient{})
	assert.Error(t, err)

	_, err = NewRunner(map[string]any{"prompt": "x", "output_format": "xml"}, &aiclient.StubClient{})
	assert.Error(t, err)

	_, err = NewRunner(map[string]any{"prompt": "x"}, nil)
	assert.Error(t, err)
}
