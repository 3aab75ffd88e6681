package trigger

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Factory creates trigger runners.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.RunnerFactory {
	return &Factory{}
}

// Create creates a trigger runner.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config), nil
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeTrigger
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "Trigger"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Entry point of a workflow; passes the trigger payload (or configured output data) downstream"
}

// Schema returns the JSON schema for trigger node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"output_data": map[string]any{
				"type":        "object",
				"description": "Static payload emitted instead of the live trigger data",
			},
		},
	}
}
