package toolbuilder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/eval"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
	"github.com/flowmatic/flowmatic/pkg/transforms"
)

// apiTimeout bounds every outbound call made by an api_call step. Not
// configurable from tool logic.
const apiTimeout = 10 * time.Second

// Env carries the server-side capabilities logic steps may use. The
// SSRF policy and clients are injected by the host, never taken from
// tool definitions.
type Env struct {
	Policy     ssrf.Policy
	HTTPClient *http.Client
	AIClient   protocol.AIClient
}

// runtime is the mutable state of one interpretation: the variable
// scope (inputs plus step_<id> results) and the last produced value.
type runtime struct {
	ctx  context.Context
	env  Env
	vars map[string]any
	last any
}

func (rt *runtime) setResult(stepID string, value any) {
	rt.vars["step_"+stepID] = value
	rt.last = value
}

// Run interprets the program against a validated input record. Step
// failures return as errors carrying code-prefixed messages; no partial
// result is produced.
func (p *Program) Run(ctx context.Context, env Env, input map[string]any) (map[string]any, error) {
	rt := &runtime{
		ctx:  ctx,
		env:  env,
		vars: make(map[string]any, len(input)),
	}

	for name, value := range input {
		rt.vars[name] = value
	}

	for _, step := range p.steps {
		if err := step.run(rt); err != nil {
			return nil, err
		}
	}

	if p.outputTemplate != "" {
		return map[string]any{"result": substituteVars(p.outputTemplate, rt.vars)}, nil
	}

	return map[string]any{"result": rt.last}, nil
}

func runNested(rt *runtime, steps []instruction) error {
	for _, step := range steps {
		if err := step.run(rt); err != nil {
			return err
		}
	}

	return nil
}

func (s *calcStep) run(rt *runtime) error {
	value, err := eval.EvaluateWith(s.formula, rt.vars)
	if err != nil {
		return fmt.Errorf("CALCULATION_FAILED: step %q: %w", s.stepID, err)
	}

	rt.setResult(s.stepID, value)

	return nil
}

func (s *condStep) run(rt *runtime) error {
	matched, err := evalCondition(s.expression, rt.vars)
	if err != nil {
		return fmt.Errorf("CONDITION_INVALID: step %q: %w", s.stepID, err)
	}

	branch := "else"
	if matched {
		branch = "then"
	}

	// The branch marker is written before the nested steps run so a
	// nested failure still shows which way the condition went.
	rt.setResult(s.stepID, map[string]any{"branch": branch, "matched": matched})

	if matched {
		return runNested(rt, s.then)
	}

	return runNested(rt, s.els)
}

func (s *switchStep) run(rt *runtime) error {
	value, ok := rt.vars[s.field]
	if !ok {
		return fmt.Errorf("SWITCH_FIELD_MISSING: step %q references unknown field %q", s.stepID, s.field)
	}

	discriminant := fmt.Sprintf("%v", value)

	for _, arm := range s.arms {
		if arm.value == discriminant {
			rt.setResult(s.stepID, map[string]any{"branch": arm.value, "matched": true})

			return runNested(rt, arm.steps)
		}
	}

	rt.setResult(s.stepID, map[string]any{"branch": "default", "matched": false})

	return runNested(rt, s.def)
}

func (s *transformStep) run(rt *runtime) error {
	value, ok := rt.vars[s.field]
	if !ok {
		return fmt.Errorf("TRANSFORM_FIELD_MISSING: step %q references unknown field %q", s.stepID, s.field)
	}

	transformed, err := transforms.Apply(s.function, value)
	if err != nil {
		return fmt.Errorf("TRANSFORM_FAILED: step %q: %w", s.stepID, err)
	}

	rt.setResult(s.stepID, transformed)

	return nil
}

func (s *lookupStep) run(rt *runtime) error {
	value, ok := rt.vars[s.field]
	if !ok {
		return fmt.Errorf("LOOKUP_FIELD_MISSING: step %q references unknown field %q", s.stepID, s.field)
	}

	key := fmt.Sprintf("%v", value)

	if entry, ok := s.table[key]; ok {
		rt.setResult(s.stepID, entry)

		return nil
	}

	if s.hasDefault {
		rt.setResult(s.stepID, s.def)

		return nil
	}

	return fmt.Errorf("LOOKUP_NO_MATCH: step %q has no entry for %q and no default", s.stepID, key)
}

func (s *apiStep) run(rt *runtime) error {
	url := substituteVars(s.url, rt.vars)

	if err := ssrf.Validate(rt.env.Policy, url); err != nil {
		return fmt.Errorf("SSRF_BLOCKED: step %q: %w", s.stepID, err)
	}

	callCtx, cancel := context.WithTimeout(rt.ctx, apiTimeout)
	defer cancel()

	var body io.Reader
	if s.body != "" {
		body = strings.NewReader(substituteVars(s.body, rt.vars))
	}

	req, err := http.NewRequestWithContext(callCtx, s.method, url, body)
	if err != nil {
		return fmt.Errorf("API_NETWORK: step %q: %v", s.stepID, err)
	}

	for key, value := range s.headers {
		req.Header.Set(key, substituteVars(value, rt.vars))
	}

	if s.body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := rt.env.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return fmt.Errorf("API_TIMEOUT: step %q exceeded %s", s.stepID, apiTimeout)
		}

		return fmt.Errorf("API_NETWORK: step %q: %v", s.stepID, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("API_NETWORK: step %q: failed to read response: %v", s.stepID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API_STATUS: step %q got HTTP %d", s.stepID, resp.StatusCode)
	}

	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		rt.setResult(s.stepID, parsed)
	} else {
		rt.setResult(s.stepID, string(respBody))
	}

	return nil
}

func (s *aiStep) run(rt *runtime) error {
	if rt.env.AIClient == nil {
		return fmt.Errorf("%s: step %q has no provider configured", ai.CodeMissingKey, s.stepID)
	}

	text, err := rt.env.AIClient.Complete(rt.ctx, protocol.ChatRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages: []protocol.ChatMessage{
			{Role: "user", Content: substituteVars(s.prompt, rt.vars)},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: step %q: %s", ai.CodeOf(err), s.stepID, err.Error())
	}

	rt.setResult(s.stepID, text)

	return nil
}

// Custom steps never execute server-side: there is no sandbox here and
// the static safety scan is advisory, not a security boundary. They run
// only inside the generated resolver.
func (s *customStep) run(_ *runtime) error {
	return fmt.Errorf("CUSTOM_NOT_SUPPORTED: step %q: custom code only runs in generated resolvers", s.stepID)
}

// evalCondition evaluates a "left op right" comparison. Each side may
// be a bound variable, an arithmetic expression over bound variables or
// a literal.
func evalCondition(expression string, vars map[string]any) (bool, error) {
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		index := strings.Index(expression, op)
		if index < 0 {
			continue
		}

		left := resolveOperand(expression[:index], vars)
		right := resolveOperand(expression[index+len(op):], vars)

		return compare(left, op, right)
	}

	return false, fmt.Errorf("no comparison operator in %q", expression)
}

func resolveOperand(raw string, vars map[string]any) any {
	trimmed := strings.TrimSpace(raw)

	if value, ok := vars[trimmed]; ok {
		return value
	}

	if value, err := eval.EvaluateWith(trimmed, vars); err == nil {
		return value
	}

	return strings.Trim(trimmed, `"'`)
}

func compare(left any, op string, right any) (bool, error) {
	leftNum, leftOk := operandNumber(left)
	rightNum, rightOk := operandNumber(right)

	if leftOk && rightOk {
		switch op {
		case "==":
			return leftNum == rightNum, nil
		case "!=":
			return leftNum != rightNum, nil
		case ">":
			return leftNum > rightNum, nil
		case "<":
			return leftNum < rightNum, nil
		case ">=":
			return leftNum >= rightNum, nil
		case "<=":
			return leftNum <= rightNum, nil
		}
	}

	leftText := fmt.Sprintf("%v", left)
	rightText := fmt.Sprintf("%v", right)

	switch op {
	case "==":
		return leftText == rightText, nil
	case "!=":
		return leftText != rightText, nil
	default:
		return false, fmt.Errorf("operator %q requires numeric operands, got %q and %q", op, leftText, rightText)
	}
}

func operandNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return num, true
	default:
		return 0, false
	}
}
