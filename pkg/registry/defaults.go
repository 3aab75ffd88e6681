package registry

import (
	"net/http"

	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/runners/action"
	"github.com/flowmatic/flowmatic/pkg/runners/ai"
	"github.com/flowmatic/flowmatic/pkg/runners/apicall"
	"github.com/flowmatic/flowmatic/pkg/runners/condition"
	"github.com/flowmatic/flowmatic/pkg/runners/loop"
	"github.com/flowmatic/flowmatic/pkg/runners/tool"
	"github.com/flowmatic/flowmatic/pkg/runners/transform"
	"github.com/flowmatic/flowmatic/pkg/runners/trigger"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
)

// Dependencies holds the server-level collaborators the built-in
// runners need. These are injected here and never taken from workflow
// configuration.
type Dependencies struct {
	Policy     ssrf.Policy
	HTTPClient *http.Client
	AIClient   protocol.AIClient
	Tools      protocol.ToolInvoker
}

// RegisterDefaults registers the built-in runner factories for every
// node type. The loop factory dispatches nested steps back through this
// registry.
func (r *Registry) RegisterDefaults(deps Dependencies) {
	r.Register(trigger.NewFactory())
	r.Register(action.NewFactory())
	r.Register(condition.NewFactory())
	r.Register(transform.NewFactory())
	r.Register(apicall.NewFactory(deps.Policy, deps.HTTPClient))
	r.Register(ai.NewFactory(deps.AIClient))
	r.Register(loop.NewFactory(r))
	r.Register(tool.NewFactory(deps.Tools))
}
