package ai

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Factory creates AI runners sharing one provider client.
type Factory struct {
	client protocol.AIClient
}

// NewFactory creates a factory around the given provider client.
func NewFactory(client protocol.AIClient) protocol.RunnerFactory {
	return &Factory{client: client}
}

// Create creates an AI runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config, f.client)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeAI
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "AI Completion"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Calls a text-generation provider with a context-substituted prompt"
}

// Schema returns the JSON schema for AI node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":        map[string]any{"type": "string"},
			"system":        map[string]any{"type": "string"},
			"model":         map[string]any{"type": "string"},
			"max_tokens":    map[string]any{"type": "number", "minimum": 1},
			"temperature":   map[string]any{"type": "number", "minimum": 0, "maximum": 2},
			"output_format": map[string]any{"type": "string", "enum": []string{"text", "json", "markdown"}},
		},
		"required": []string{"prompt"},
	}
}
