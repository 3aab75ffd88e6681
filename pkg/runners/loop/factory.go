package loop

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Factory creates loop runners bound to a runner provider.
type Factory struct {
	provider protocol.RunnerProvider
}

// NewFactory creates a factory dispatching nested steps through the
// given provider.
func NewFactory(provider protocol.RunnerProvider) protocol.RunnerFactory {
	return &Factory{provider: provider}
}

// Create creates a loop runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config, f.provider)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeLoop
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "Loop"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Runs a nested step list once per item of a source collection"
}

// Schema returns the JSON schema for loop node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type":        "string",
				"description": "Field reference to the collection to iterate",
			},
			"steps": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":   map[string]any{"type": "string"},
						"type": map[string]any{"type": "string"},
						"data": map[string]any{"type": "object"},
					},
					"required": []string{"type"},
				},
			},
		},
		"required": []string{"items", "steps"},
	}
}
