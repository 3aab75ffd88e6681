// Package trigger provides the workflow entry-point runner.
package trigger

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Runner is a passthrough: it copies the node's configured output data
// (or the live trigger payload) into its own output and always
// continues.
type Runner struct {
	outputData map[string]any
}

// NewRunner creates a trigger runner from node configuration.
func NewRunner(config map[string]any) *Runner {
	outputData, _ := config["output_data"].(map[string]any)

	return &Runner{outputData: outputData}
}

// Execute copies the trigger payload into the node's output.
func (r *Runner) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	output := r.outputData
	if output == nil {
		output = execCtx.TriggerData
	}

	execCtx.AppendLog("info", node.ID, "workflow triggered")

	return &protocol.RunnerResult{
		Success:        true,
		Output:         output,
		ShouldContinue: true,
	}, nil
}
