// Package condition provides conditional branching for workflow graph
// execution. The activated output port ("true"/"false") selects which
// outgoing edges fire, so exactly one branch's descendants run.
package condition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/template"
)

const (
	PortTrue  = "true"
	PortFalse = "false"

	logicAnd = "and"
	logicOr  = "or"
)

// Clause is one field/operator/value comparison.
type Clause struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Runner evaluates one or more clauses combined with AND/OR and routes
// execution to the matching branch.
type Runner struct {
	clauses []Clause
	logic   string
}

// NewRunner creates a condition runner from node configuration.
func NewRunner(config map[string]any) (*Runner, error) {
	rawClauses, ok := config["conditions"].([]any)
	if !ok || len(rawClauses) == 0 {
		return nil, errors.New("missing required field 'conditions'")
	}

	clauses := make([]Clause, 0, len(rawClauses))

	for _, raw := range rawClauses {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.New("each condition must be an object")
		}

		clause := Clause{Value: m["value"]}
		clause.Field, _ = m["field"].(string)
		clause.Operator, _ = m["operator"].(string)

		if clause.Field == "" || clause.Operator == "" {
			return nil, errors.New("each condition requires 'field' and 'operator'")
		}

		clauses = append(clauses, clause)
	}

	logic, _ := config["logic"].(string)
	logic = strings.ToLower(logic)

	if logic == "" {
		logic = logicAnd
	}

	if logic != logicAnd && logic != logicOr {
		return nil, fmt.Errorf("unsupported logic %q, expected and/or", logic)
	}

	return &Runner{clauses: clauses, logic: logic}, nil
}

// Execute evaluates the clauses and activates the matching port.
func (r *Runner) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	matched := r.logic == logicAnd

	for _, clause := range r.clauses {
		value, ok := template.LookupField(execCtx, clause.Field)
		if !ok && requiresValue(clause.Operator) {
			return &protocol.RunnerResult{
				Success: false,
				Error:   fmt.Sprintf("CONDITION_FIELD_MISSING: field %q not found in context", clause.Field),
			}, nil
		}

		result, err := evaluateClause(value, clause.Operator, clause.Value)
		if err != nil {
			return &protocol.RunnerResult{
				Success: false,
				Error:   "CONDITION_INVALID: " + err.Error(),
			}, nil
		}

		if r.logic == logicAnd {
			matched = matched && result
		} else {
			matched = matched || result
		}
	}

	port := PortFalse
	if matched {
		port = PortTrue
	}

	execCtx.AppendLog("info", node.ID, "condition evaluated to "+port)

	return &protocol.RunnerResult{
		Success:        true,
		Output:         map[string]any{"result": matched, "branch": port},
		ShouldContinue: true,
		Port:           port,
	}, nil
}

func requiresValue(operator string) bool {
	return operator != "is_empty" && operator != "is_not_empty"
}

func evaluateClause(actual any, operator string, expected any) (bool, error) {
	switch operator {
	case "equals":
		return looseEquals(actual, expected), nil
	case "not_equals":
		return !looseEquals(actual, expected), nil
	case "greater_than", "less_than", "greater_or_equal", "less_or_equal":
		left, lok := toNumber(actual)
		right, rok := toNumber(expected)

		if !lok || !rok {
			return false, fmt.Errorf("operator %q requires numeric operands", operator)
		}

		switch operator {
		case "greater_than":
			return left > right, nil
		case "less_than":
			return left < right, nil
		case "greater_or_equal":
			return left >= right, nil
		default:
			return left <= right, nil
		}
	case "contains":
		return strings.Contains(asString(actual), asString(expected)), nil
	case "not_contains":
		return !strings.Contains(asString(actual), asString(expected)), nil
	case "is_empty":
		return isEmpty(actual), nil
	case "is_not_empty":
		return !isEmpty(actual), nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func looseEquals(a, b any) bool {
	if left, lok := toNumber(a); lok {
		if right, rok := toNumber(b); rok {
			return left == right
		}
	}

	return asString(a) == asString(b)
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return num, true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

func asString(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
