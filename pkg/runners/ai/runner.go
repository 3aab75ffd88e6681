// Package ai provides the text-generation runner backed by a
// chat-completion provider.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	aiclient "github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/template"
)

const (
	defaultMaxTokens = 1024

	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// Runner calls the configured provider with a context-substituted
// prompt and formats the result.
type Runner struct {
	client       protocol.AIClient
	prompt       string
	system       string
	model        string
	maxTokens    int
	temperature  float64
	outputFormat string
}

// NewRunner creates an AI runner from node configuration.
func NewRunner(config map[string]any, client protocol.AIClient) (*Runner, error) {
	if client == nil {
		return nil, errors.New("ai runner requires a provider client")
	}

	prompt, _ := config["prompt"].(string)
	if prompt == "" {
		return nil, errors.New("missing required field 'prompt'")
	}

	r := &Runner{
		client:       client,
		prompt:       prompt,
		maxTokens:    defaultMaxTokens,
		outputFormat: formatText,
	}

	r.system, _ = config["system"].(string)
	r.model, _ = config["model"].(string)

	if maxTokens, ok := config["max_tokens"].(float64); ok && maxTokens > 0 {
		r.maxTokens = int(maxTokens)
	}

	if temperature, ok := config["temperature"].(float64); ok {
		r.temperature = temperature
	}

	if format, ok := config["output_format"].(string); ok && format != "" {
		switch format {
		case formatText, formatJSON, formatMarkdown:
			r.outputFormat = format
		default:
			return nil, fmt.Errorf("unsupported output_format %q", format)
		}
	}

	return r, nil
}

// Execute renders the prompt, calls the provider and formats the reply.
func (r *Runner) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	rendered, err := template.RenderWithContext(r.prompt, execCtx)
	if err != nil {
		return failure("AI_TEMPLATE: failed to render prompt: " + err.Error()), nil
	}

	prompt := fmt.Sprintf("%v", rendered)

	messages := make([]protocol.ChatMessage, 0, 2)
	if r.system != "" {
		messages = append(messages, protocol.ChatMessage{Role: "system", Content: r.system})
	}

	messages = append(messages, protocol.ChatMessage{Role: "user", Content: prompt})

	text, err := r.client.Complete(ctx, protocol.ChatRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		return failure(formatProviderError(err)), nil
	}

	output, err := r.formatOutput(text)
	if err != nil {
		return failure(err.Error()), nil
	}

	execCtx.AppendLog("info", node.ID, "ai completion finished")

	return &protocol.RunnerResult{
		Success:        true,
		Output:         output,
		ShouldContinue: true,
	}, nil
}

func (r *Runner) formatOutput(text string) (any, error) {
	switch r.outputFormat {
	case formatJSON:
		cleaned := stripCodeFence(text)

		var parsed any
		if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
			return nil, fmt.Errorf("AI_BAD_JSON: provider response is not valid JSON: %w", err)
		}

		return parsed, nil
	case formatMarkdown:
		return map[string]any{"markdown": text}, nil
	default:
		return map[string]any{"text": text}, nil
	}
}

// stripCodeFence removes a surrounding ```json fence, which providers
// add even when asked for raw JSON.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}

func formatProviderError(err error) string {
	var aiErr *aiclient.Error
	if errors.As(err, &aiErr) {
		return aiErr.Error()
	}

	return aiclient.CodeNetwork + ": " + err.Error()
}

func failure(message string) *protocol.RunnerResult {
	return &protocol.RunnerResult{Success: false, Error: message}
}
