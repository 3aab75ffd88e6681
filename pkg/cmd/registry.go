package cmd

import (
	"log/slog"
	"os"

	"github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/eventbus"
	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/registry"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
	"github.com/flowmatic/flowmatic/pkg/toolbuilder"
)

// NewAIClient builds the provider client from the environment. Without
// an API key the stub client answers, keeping local development and
// tests offline.
func NewAIClient(logger *slog.Logger) protocol.AIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, using stub AI client")

		return &ai.StubClient{Response: "AI provider not configured"}
	}

	return ai.NewOpenAIClient(apiKey)
}

// NewRegistry wires the runner registry and the tool engine against
// shared collaborators. The production SSRF policy is always used
// here; only tests relax it.
func NewRegistry(
	logger *slog.Logger,
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
) (*registry.Registry, *toolbuilder.Engine) {
	aiClient := NewAIClient(logger)

	env := toolbuilder.Env{
		Policy:   ssrf.Policy{},
		AIClient: aiClient,
	}

	var engineOpts []toolbuilder.EngineOption
	if publisher != nil {
		engineOpts = append(engineOpts, toolbuilder.WithPublisher(publisher))
	}

	engine := toolbuilder.NewEngine(logger, store, env, engineOpts...)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(registry.Dependencies{
		Policy:   ssrf.Policy{},
		AIClient: aiClient,
		Tools:    engine,
	})

	return reg, engine
}
