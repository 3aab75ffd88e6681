// Package tool provides the runner that invokes a published tool as a
// workflow node.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/template"
)

// Runner maps workflow context values onto a published tool's inputs
// and runs it through the tool engine.
type Runner struct {
	toolID  string
	inputs  map[string]any
	invoker protocol.ToolInvoker
}

// NewRunner creates a tool runner from node configuration.
func NewRunner(config map[string]any, invoker protocol.ToolInvoker) (*Runner, error) {
	if invoker == nil {
		return nil, errors.New("tool runner requires a tool invoker")
	}

	toolID, _ := config["tool_id"].(string)
	if toolID == "" {
		toolID, _ = config["toolId"].(string)
	}

	if toolID == "" {
		return nil, errors.New("missing required field 'tool_id'")
	}

	inputs, _ := config["inputs"].(map[string]any)
	if inputs == nil {
		inputs = map[string]any{}
	}

	return &Runner{toolID: toolID, inputs: inputs, invoker: invoker}, nil
}

// Execute resolves the mapped inputs against the execution context and
// invokes the tool. The tool's output record becomes this node's
// output.
func (r *Runner) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	input := make(map[string]any, len(r.inputs))

	for name, raw := range r.inputs {
		resolved, err := resolveInput(raw, execCtx)
		if err != nil {
			return failure(fmt.Sprintf("TOOL_INPUT: input %q: %s", name, err.Error())), nil
		}

		input[name] = resolved
	}

	output, err := r.invoker.InvokeTool(ctx, r.toolID, input)
	if err != nil {
		return failure("TOOL_FAILED: " + err.Error()), nil
	}

	execCtx.AppendLog("info", node.ID, "tool "+r.toolID+" completed")

	return &protocol.RunnerResult{
		Success:        true,
		Output:         output,
		ShouldContinue: true,
	}, nil
}

// resolveInput renders template values and passes literals through.
// String values without template syntax are tried as field references
// first so node configs can say "steps.fetch.json.amount" directly.
func resolveInput(raw any, execCtx *models.ExecutionContext) (any, error) {
	text, ok := raw.(string)
	if !ok {
		return raw, nil
	}

	if template.NeedsTemplating(text) {
		return template.RenderWithContext(text, execCtx)
	}

	if value, found := template.LookupField(execCtx, text); found {
		return value, nil
	}

	return text, nil
}

func failure(message string) *protocol.RunnerResult {
	return &protocol.RunnerResult{Success: false, Error: message}
}
