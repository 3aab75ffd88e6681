package condition

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Factory creates condition runners.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.RunnerFactory {
	return &Factory{}
}

// Create creates a condition runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeCondition
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "Condition"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Evaluates field/operator/value clauses combined with AND/OR and routes to the true or false branch"
}

// Schema returns the JSON schema for condition node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conditions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field":    map[string]any{"type": "string"},
						"operator": map[string]any{
							"type": "string",
							"enum": []string{
								"equals", "not_equals",
								"greater_than", "less_than",
								"greater_or_equal", "less_or_equal",
								"contains", "not_contains",
								"is_empty", "is_not_empty",
							},
						},
						"value": map[string]any{},
					},
					"required": []string{"field", "operator"},
				},
			},
			"logic": map[string]any{"type": "string", "enum": []string{"and", "or"}},
		},
		"required": []string{"conditions"},
	}
}
