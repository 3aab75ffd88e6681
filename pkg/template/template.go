// Package template provides context-variable substitution for dynamic
// node configuration.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// RenderWithContext renders a template string against the execution
// context. Step outputs are addressed by node id under .step_outputs,
// trigger payload under .trigger_data, accumulated variables under
// .variables (and .vars for brevity).
func RenderWithContext(input string, execCtx *models.ExecutionContext) (any, error) {
	data := map[string]any{
		"step_outputs": execCtx.StepOutputs,
		"steps":        execCtx.StepOutputs,
		"variables":    execCtx.Variables,
		"vars":         execCtx.Variables,
		"trigger_data": execCtx.TriggerData,
		"trigger":      execCtx.TriggerData,
		"execution": map[string]any{
			"id":          execCtx.ExecutionID,
			"workflow_id": execCtx.WorkflowID,
			"user_id":     execCtx.UserID,
		},
	}

	return Render(input, data)
}

// Render executes the template and coerces the textual result back into
// a JSON value, number or boolean where possible.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("node").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"trim":  strings.TrimSpace,
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// NeedsTemplating reports whether a string contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}
