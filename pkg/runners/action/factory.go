package action

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Factory creates action runners.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.RunnerFactory {
	return &Factory{}
}

// Create creates an action runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeAction
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "Action"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Performs a declared side effect: log, set_variable or delay"
}

// Schema returns the JSON schema for action node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{"log", "set_variable", "delay"},
			},
			"message":  map[string]any{"type": "string"},
			"level":    map[string]any{"type": "string", "enum": []string{"debug", "info", "warn", "error"}},
			"variable": map[string]any{"type": "string"},
			"value":    map[string]any{},
			"seconds":  map[string]any{"type": "number", "minimum": 0, "maximum": maxDelaySeconds},
		},
		"required": []string{"action"},
	}
}
