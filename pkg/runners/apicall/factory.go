package apicall

import (
	"context"
	"net/http"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
)

// Factory creates API runners carrying the server-level SSRF policy and
// HTTP client.
type Factory struct {
	policy ssrf.Policy
	client *http.Client
}

// NewFactory creates a factory with the given policy. A nil client
// falls back to http.DefaultClient.
func NewFactory(policy ssrf.Policy, client *http.Client) protocol.RunnerFactory {
	return &Factory{policy: policy, client: client}
}

// Create creates an API runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config, f.policy, f.client)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeAPI
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "API Request"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Performs an outbound HTTP request with context-variable substitution and SSRF validation"
}

// Schema returns the JSON schema for API node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{"type": "object"},
			"body":    map[string]any{"type": "string"},
			"timeout": map[string]any{"type": "number", "minimum": 0, "maximum": 10},
		},
		"required": []string{"url"},
	}
}
