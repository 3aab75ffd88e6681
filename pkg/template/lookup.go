package template

import (
	"strings"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// LookupField resolves a field reference against the execution context.
// A reference is either a template action ({{...}}), a dotted path
// rooted at variables / trigger_data / step_outputs, or a bare name
// searched in variables, then trigger data, then step outputs.
func LookupField(execCtx *models.ExecutionContext, field string) (any, bool) {
	if NeedsTemplating(field) {
		value, err := RenderWithContext(field, execCtx)
		if err != nil {
			return nil, false
		}

		return value, true
	}

	parts := strings.Split(field, ".")

	switch parts[0] {
	case "variables", "vars":
		return lookupPath(execCtx.Variables, parts[1:])
	case "trigger_data", "trigger":
		return lookupPath(execCtx.TriggerData, parts[1:])
	case "step_outputs", "steps":
		return lookupPath(execCtx.StepOutputs, parts[1:])
	}

	if value, ok := lookupPath(execCtx.Variables, parts); ok {
		return value, true
	}

	if value, ok := lookupPath(execCtx.TriggerData, parts); ok {
		return value, true
	}

	return lookupPath(execCtx.StepOutputs, parts)
}

func lookupPath(root map[string]any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return root, root != nil
	}

	var current any = root

	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
