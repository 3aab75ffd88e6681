// Package loop provides the iteration runner. It re-runs a nested step
// list once per item of a source collection and aggregates the
// per-iteration outputs in order.
package loop

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/template"
)

// MaxIterations caps how many items a single loop node may process.
const MaxIterations = 1000

// Runner iterates a collection resolved from the execution context and
// dispatches each nested step through the runner provider.
type Runner struct {
	source   string
	steps    []*models.Node
	provider protocol.RunnerProvider
}

// NewRunner creates a loop runner from node configuration. The provider
// is injected by the factory so nested steps dispatch through the same
// registry as top-level nodes.
func NewRunner(config map[string]any, provider protocol.RunnerProvider) (*Runner, error) {
	if provider == nil {
		return nil, errors.New("loop runner requires a runner provider")
	}

	source, _ := config["items"].(string)
	if source == "" {
		source, _ = config["source"].(string)
	}

	if source == "" {
		return nil, errors.New("missing required field 'items'")
	}

	rawSteps, ok := config["steps"].([]any)
	if !ok || len(rawSteps) == 0 {
		return nil, errors.New("missing required field 'steps'")
	}

	steps := make([]*models.Node, 0, len(rawSteps))

	for i, raw := range rawSteps {
		stepMap, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %d is not an object", i)
		}

		node, err := parseStep(i, stepMap)
		if err != nil {
			return nil, err
		}

		steps = append(steps, node)
	}

	return &Runner{source: source, steps: steps, provider: provider}, nil
}

func parseStep(index int, stepMap map[string]any) (*models.Node, error) {
	stepType, _ := stepMap["type"].(string)
	if stepType == "" {
		return nil, fmt.Errorf("step %d is missing a type", index)
	}

	nodeType := models.NodeType(stepType)
	if nodeType == models.NodeTypeTrigger || nodeType == models.NodeTypeLoop {
		return nil, fmt.Errorf("step %d: type %q is not allowed inside a loop", index, stepType)
	}

	id, _ := stepMap["id"].(string)
	if id == "" {
		id = fmt.Sprintf("step-%d", index)
	}

	data, _ := stepMap["data"].(map[string]any)
	if data == nil {
		data, _ = stepMap["config"].(map[string]any)
	}

	if data == nil {
		data = map[string]any{}
	}

	return &models.Node{ID: id, Type: nodeType, Data: data}, nil
}

// Execute resolves the collection and runs the nested steps once per
// item. A nested step failure fails the whole loop node, carrying the
// iteration index in the error.
func (r *Runner) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	value, found := template.LookupField(execCtx, r.source)
	if !found {
		return failure(fmt.Sprintf("LOOP_SOURCE_MISSING: collection %q not found in context", r.source)), nil
	}

	items, err := toSlice(value)
	if err != nil {
		return failure("LOOP_SOURCE_INVALID: " + err.Error()), nil
	}

	if len(items) > MaxIterations {
		return failure(fmt.Sprintf("LOOP_TOO_LARGE: collection has %d items, limit is %d", len(items), MaxIterations)), nil
	}

	results := make([]any, 0, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return failure("LOOP_CANCELLED: " + err.Error()), nil
		}

		output, runErr := r.runIteration(ctx, node, execCtx, i, item)
		if runErr != nil {
			return failure(fmt.Sprintf("LOOP_STEP_FAILED: iteration %d: %s", i, runErr.Error())), nil
		}

		results = append(results, output)
	}

	execCtx.AppendLog("info", node.ID, fmt.Sprintf("loop finished %d iterations", len(items)))

	return &protocol.RunnerResult{
		Success:        true,
		Output:         map[string]any{"results": results, "count": len(items)},
		ShouldContinue: true,
	}, nil
}

// runIteration executes the nested step list against a child context
// with item and index bound. Step outputs accumulate per iteration so
// later nested steps can reference earlier ones.
func (r *Runner) runIteration(ctx context.Context, loopNode *models.Node, execCtx *models.ExecutionContext, index int, item any) (any, error) {
	child := childContext(execCtx, index, item)

	var last any

	for _, step := range r.steps {
		runner, err := r.provider.CreateRunner(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.ID, err)
		}

		result, err := runner.Execute(ctx, step, child)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.ID, err)
		}

		if !result.Success {
			return nil, fmt.Errorf("step %q: %s", step.ID, result.Error)
		}

		child.SetStepOutput(step.ID, result.Output)
		last = result.Output
	}

	// Variables written by nested action steps survive into the parent
	// run; item and index do not.
	for key, value := range child.Variables {
		if key == "item" || key == "index" {
			continue
		}

		execCtx.Variables[key] = value
	}

	return last, nil
}

func childContext(parent *models.ExecutionContext, index int, item any) *models.ExecutionContext {
	variables := make(map[string]any, len(parent.Variables)+2)
	for key, value := range parent.Variables {
		variables[key] = value
	}

	variables["item"] = item
	variables["index"] = index

	return &models.ExecutionContext{
		WorkflowID:  parent.WorkflowID,
		ExecutionID: parent.ExecutionID,
		UserID:      parent.UserID,
		TriggerData: parent.TriggerData,
		Variables:   variables,
		StepOutputs: make(map[string]any),
		Connections: parent.Connections,
		StartedAt:   parent.StartedAt,
		Logger:      parent.Logger,
	}
}

func toSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}

		return items, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i, m := range v {
			items[i] = m
		}

		return items, nil
	default:
		return nil, fmt.Errorf("value of type %T is not a collection", value)
	}
}

func failure(message string) *protocol.RunnerResult {
	return &protocol.RunnerResult{Success: false, Error: message}
}
