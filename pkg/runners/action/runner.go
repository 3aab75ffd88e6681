// Package action provides the side-effect runner for workflow graphs.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/template"
)

const maxDelaySeconds = 60

// Runner performs a declared side effect. Supported kinds: "log"
// (writes to the execution log), "set_variable" (writes into the
// context variables) and "delay" (bounded sleep).
type Runner struct {
	kind     string
	message  string
	level    string
	variable string
	value    any
	seconds  float64
}

// NewRunner creates an action runner from node configuration.
func NewRunner(config map[string]any) (*Runner, error) {
	kind, _ := config["action"].(string)
	if kind == "" {
		return nil, errors.New("missing required field 'action'")
	}

	r := &Runner{kind: kind}

	switch kind {
	case "log":
		r.message, _ = config["message"].(string)
		r.level, _ = config["level"].(string)

		if r.level == "" {
			r.level = "info"
		}
	case "set_variable":
		r.variable, _ = config["variable"].(string)
		if r.variable == "" {
			return nil, errors.New("set_variable action requires 'variable'")
		}

		r.value = config["value"]
	case "delay":
		seconds, _ := config["seconds"].(float64)
		if seconds <= 0 || seconds > maxDelaySeconds {
			return nil, fmt.Errorf("delay seconds must be between 0 and %d", maxDelaySeconds)
		}

		r.seconds = seconds
	default:
		return nil, fmt.Errorf("unsupported action kind: %s", kind)
	}

	return r, nil
}

// Execute performs the configured side effect.
func (r *Runner) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	switch r.kind {
	case "log":
		rendered, err := template.RenderWithContext(r.message, execCtx)
		if err != nil {
			return failure(fmt.Sprintf("ACTION_TEMPLATE: %v", err)), nil
		}

		message := fmt.Sprintf("%v", rendered)
		execCtx.AppendLog(r.level, node.ID, message)
		execCtx.Logger.InfoContext(ctx, message, "node_id", node.ID)

		return success(map[string]any{"logged": message}), nil
	case "set_variable":
		value := r.value

		if text, ok := value.(string); ok && template.NeedsTemplating(text) {
			rendered, err := template.RenderWithContext(text, execCtx)
			if err != nil {
				return failure(fmt.Sprintf("ACTION_TEMPLATE: %v", err)), nil
			}

			value = rendered
		}

		execCtx.Variables[r.variable] = value

		return success(map[string]any{"variable": r.variable, "value": value}), nil
	case "delay":
		timer := time.NewTimer(time.Duration(r.seconds * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return failure(fmt.Sprintf("ACTION_CANCELLED: %v", ctx.Err())), nil
		}

		return success(map[string]any{"delayed_seconds": r.seconds}), nil
	default:
		return failure("ACTION_UNSUPPORTED: " + r.kind), nil
	}
}

func success(output any) *protocol.RunnerResult {
	return &protocol.RunnerResult{Success: true, Output: output, ShouldContinue: true}
}

func failure(message string) *protocol.RunnerResult {
	return &protocol.RunnerResult{Success: false, Error: message}
}
