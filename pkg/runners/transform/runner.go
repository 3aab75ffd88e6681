// Package transform provides the data transformation runner, applying a
// named pure function from the shared catalog to one input field.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/template"
	"github.com/flowmatic/flowmatic/pkg/transforms"
)

// Runner applies a named transformation to a single field resolved from
// the execution context.
type Runner struct {
	function string
	field    string
}

// NewRunner creates a transform runner from node configuration.
func NewRunner(config map[string]any) (*Runner, error) {
	function, _ := config["function"].(string)
	if function == "" {
		return nil, errors.New("missing required field 'function'")
	}

	field, _ := config["field"].(string)
	if field == "" {
		return nil, errors.New("missing required field 'field'")
	}

	return &Runner{function: function, field: field}, nil
}

// Execute resolves the input field and applies the transformation.
func (r *Runner) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	value, ok := template.LookupField(execCtx, r.field)
	if !ok {
		return &protocol.RunnerResult{
			Success: false,
			Error:   fmt.Sprintf("TRANSFORM_FIELD_MISSING: field %q not found in context", r.field),
		}, nil
	}

	result, err := transforms.Apply(r.function, value)
	if err != nil {
		return &protocol.RunnerResult{
			Success: false,
			Error:   "TRANSFORM_FAILED: " + err.Error(),
		}, nil
	}

	execCtx.AppendLog("info", node.ID, "applied transform "+r.function)

	return &protocol.RunnerResult{
		Success:        true,
		Output:         result,
		ShouldContinue: true,
	}, nil
}
