// Package toolbuilder executes visual-builder tools: a declared input
// schema plus an ordered list of logic steps. Tool logic is compiled
// once into a typed instruction program with two back-ends over the
// same IR — a live interpreter used server-side, and a JavaScript
// source emitter that produces a standalone resolver for execution
// outside the interpreter. Logic is never templated into source text
// and re-parsed.
package toolbuilder

import (
	"fmt"
	"strings"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// Program is a compiled tool: the instruction list plus the output
// template and the declared input names (the emitter needs those to
// rewrite formula identifiers into context accesses).
type Program struct {
	steps          []instruction
	inputs         []string
	outputTemplate string
}

// instruction is one compiled logic step. Every variant implements
// both back-ends.
type instruction interface {
	id() string
	run(rt *runtime) error
	emit(w *jsWriter)
}

type calcStep struct {
	stepID  string
	formula string
}

type condStep struct {
	stepID     string
	expression string
	then       []instruction
	els        []instruction
}

type switchArm struct {
	value string
	steps []instruction
}

type switchStep struct {
	stepID string
	field  string
	arms   []switchArm
	def    []instruction
}

type transformStep struct {
	stepID   string
	function string
	field    string
}

type lookupStep struct {
	stepID     string
	field      string
	table      map[string]any
	def        any
	hasDefault bool
}

type apiStep struct {
	stepID  string
	url     string
	method  string
	headers map[string]string
	body    string
}

type aiStep struct {
	stepID      string
	prompt      string
	model       string
	maxTokens   int
	temperature float64
}

type customStep struct {
	stepID string
	code   string
}

func (s *calcStep) id() string      { return s.stepID }
func (s *condStep) id() string      { return s.stepID }
func (s *switchStep) id() string    { return s.stepID }
func (s *transformStep) id() string { return s.stepID }
func (s *lookupStep) id() string    { return s.stepID }
func (s *apiStep) id() string       { return s.stepID }
func (s *aiStep) id() string        { return s.stepID }
func (s *customStep) id() string    { return s.stepID }

// Compile turns a tool's logic into a program. Configuration problems
// surface here, before anything runs.
func Compile(tool *models.Tool) (*Program, error) {
	steps, err := compileSteps(tool.Logic)
	if err != nil {
		return nil, err
	}

	program := &Program{
		steps:          steps,
		outputTemplate: tool.OutputTemplate,
	}

	for _, input := range tool.Inputs {
		program.inputs = append(program.inputs, input.Name)
	}

	return program, nil
}

func compileSteps(logic []*models.LogicStep) ([]instruction, error) {
	compiled := make([]instruction, 0, len(logic))

	for index, step := range logic {
		instr, err := compileStep(step, index)
		if err != nil {
			return nil, err
		}

		compiled = append(compiled, instr)
	}

	return compiled, nil
}

func compileStep(step *models.LogicStep, index int) (instruction, error) {
	stepID := step.ID
	if stepID == "" {
		stepID = fmt.Sprintf("s%d", index+1)
	}

	switch step.Type {
	case models.LogicStepCalculation:
		formula := configString(step.Config, "formula")
		if formula == "" {
			return nil, fmt.Errorf("calculation step %q missing 'formula'", stepID)
		}

		return &calcStep{stepID: stepID, formula: formula}, nil

	case models.LogicStepCondition:
		expression := configString(step.Config, "expression")
		if expression == "" {
			return nil, fmt.Errorf("condition step %q missing 'expression'", stepID)
		}

		then, err := compileSteps(step.Then)
		if err != nil {
			return nil, err
		}

		els, err := compileSteps(step.Else)
		if err != nil {
			return nil, err
		}

		return &condStep{stepID: stepID, expression: expression, then: then, els: els}, nil

	case models.LogicStepSwitch:
		field := configString(step.Config, "field")
		if field == "" {
			return nil, fmt.Errorf("switch step %q missing 'field'", stepID)
		}

		arms := make([]switchArm, 0, len(step.Cases))

		for _, switchCase := range step.Cases {
			nested, err := compileSteps(switchCase.Steps)
			if err != nil {
				return nil, err
			}

			arms = append(arms, switchArm{value: fmt.Sprintf("%v", switchCase.Value), steps: nested})
		}

		def, err := compileSteps(step.Default)
		if err != nil {
			return nil, err
		}

		return &switchStep{stepID: stepID, field: field, arms: arms, def: def}, nil

	case models.LogicStepTransform:
		function := configString(step.Config, "function")
		field := configString(step.Config, "field")

		if function == "" || field == "" {
			return nil, fmt.Errorf("transform step %q requires 'function' and 'field'", stepID)
		}

		return &transformStep{stepID: stepID, function: function, field: field}, nil

	case models.LogicStepLookup:
		field := configString(step.Config, "field")
		if field == "" {
			return nil, fmt.Errorf("lookup step %q missing 'field'", stepID)
		}

		table, ok := step.Config["table"].(map[string]any)
		if !ok || len(table) == 0 {
			return nil, fmt.Errorf("lookup step %q missing 'table'", stepID)
		}

		compiled := &lookupStep{stepID: stepID, field: field, table: table}
		if def, ok := step.Config["default"]; ok {
			compiled.def = def
			compiled.hasDefault = true
		}

		return compiled, nil

	case models.LogicStepAPICall:
		url := configString(step.Config, "url")
		if url == "" {
			return nil, fmt.Errorf("api_call step %q missing 'url'", stepID)
		}

		compiled := &apiStep{
			stepID:  stepID,
			url:     url,
			method:  strings.ToUpper(configString(step.Config, "method")),
			body:    configString(step.Config, "body"),
			headers: make(map[string]string),
		}

		if compiled.method == "" {
			compiled.method = "GET"
		}

		if headers, ok := step.Config["headers"].(map[string]any); ok {
			for key, value := range headers {
				if text, ok := value.(string); ok {
					compiled.headers[key] = text
				}
			}
		}

		return compiled, nil

	case models.LogicStepAIAnalysis:
		prompt := configString(step.Config, "prompt")
		if prompt == "" {
			return nil, fmt.Errorf("ai_analysis step %q missing 'prompt'", stepID)
		}

		compiled := &aiStep{
			stepID:    stepID,
			prompt:    prompt,
			model:     configString(step.Config, "model"),
			maxTokens: 1024,
		}

		if maxTokens, ok := step.Config["max_tokens"].(float64); ok && maxTokens > 0 {
			compiled.maxTokens = int(maxTokens)
		}

		if temperature, ok := step.Config["temperature"].(float64); ok {
			compiled.temperature = temperature
		}

		return compiled, nil

	case models.LogicStepCustom:
		code := configString(step.Config, "code")
		if code == "" {
			return nil, fmt.Errorf("custom step %q missing 'code'", stepID)
		}

		return &customStep{stepID: stepID, code: code}, nil

	default:
		return nil, fmt.Errorf("unknown logic step type %q", step.Type)
	}
}

func configString(config map[string]any, key string) string {
	value, _ := config[key].(string)

	return strings.TrimSpace(value)
}

// substituteVars replaces {name} placeholders with the bound values.
// Unknown placeholders are left intact so the failure is visible in the
// produced text rather than silently blanked.
func substituteVars(input string, vars map[string]any) string {
	if !strings.Contains(input, "{") {
		return input
	}

	result := input

	for name, value := range vars {
		result = strings.ReplaceAll(result, "{"+name+"}", fmt.Sprintf("%v", value))
	}

	return result
}
