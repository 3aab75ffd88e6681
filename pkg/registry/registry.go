// Package registry provides runner factory registration and dispatch
// for the workflow executor.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Registry maps node types to runner factories. The node type set is
// closed; Complete() lets callers verify every known type has a runner
// before accepting workflows.
type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeType]protocol.RunnerFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.NodeType]protocol.RunnerFactory),
	}
}

// Register adds a runner factory, replacing any previous factory for
// the same node type.
func (r *Registry) Register(factory protocol.RunnerFactory) {
	r.factories[factory.Type()] = factory
}

// CreateRunner builds a runner for the node's type and configuration.
func (r *Registry) CreateRunner(ctx context.Context, node *models.Node) (protocol.Runner, error) {
	factory, ok := r.factories[node.Type]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", node.Type)
	}

	return factory.Create(ctx, node.Data)
}

// Factory returns the registered factory for a node type.
func (r *Registry) Factory(nodeType models.NodeType) (protocol.RunnerFactory, bool) {
	factory, ok := r.factories[nodeType]

	return factory, ok
}

// Complete verifies that every known node type has a registered runner.
func (r *Registry) Complete() error {
	for _, nodeType := range models.NodeTypes {
		if _, ok := r.factories[nodeType]; !ok {
			return fmt.Errorf("no runner registered for node type '%s'", nodeType)
		}
	}

	return nil
}

// ValidateConfig validates a node's configuration against the
// registered factory's JSON schema.
func (r *Registry) ValidateConfig(node *models.Node) error {
	factory, ok := r.factories[node.Type]
	if !ok {
		return fmt.Errorf("node type '%s' not registered", node.Type)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	config := node.Data
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed for node %s: %w", node.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid config for node %s (%s): %v", node.ID, node.Type, messages)
	}

	return nil
}
