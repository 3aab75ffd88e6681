package models

import "time"

// LogicStepType identifies one kind of tool logic step.
type LogicStepType string

const (
	LogicStepCalculation LogicStepType = "calculation"
	LogicStepCondition   LogicStepType = "condition"
	LogicStepSwitch      LogicStepType = "switch"
	LogicStepTransform   LogicStepType = "transform"
	LogicStepLookup      LogicStepType = "lookup"
	LogicStepAPICall     LogicStepType = "api_call"
	LogicStepAIAnalysis  LogicStepType = "ai_analysis"
	LogicStepCustom      LogicStepType = "custom"
)

// SwitchCase is one arm of a switch step.
type SwitchCase struct {
	Value any          `json:"value"`
	Steps []*LogicStep `json:"steps,omitempty"`
}

// LogicStep is one step of a tool's logic. Condition steps carry nested
// Then/Else branches; switch steps carry Cases plus an optional
// Default. Step-type-specific settings live in Config.
type LogicStep struct {
	ID     string         `json:"id"`
	Type   LogicStepType  `json:"type"   validate:"required"`
	Config map[string]any `json:"config,omitempty"`

	Then    []*LogicStep `json:"then,omitempty"`
	Else    []*LogicStep `json:"else,omitempty"`
	Cases   []SwitchCase `json:"cases,omitempty"`
	Default []*LogicStep `json:"default,omitempty"`
}

// ToolInputType constrains what a tool input accepts.
type ToolInputType string

const (
	ToolInputNumber ToolInputType = "number"
	ToolInputText   ToolInputType = "text"
	ToolInputEmail  ToolInputType = "email"
	ToolInputURL    ToolInputType = "url"
	ToolInputSelect ToolInputType = "select"
	ToolInputBool   ToolInputType = "boolean"
)

// ToolInput declares one named input of a tool.
type ToolInput struct {
	Name     string        `json:"name"     validate:"required"`
	Label    string        `json:"label,omitempty"`
	Type     ToolInputType `json:"type"     validate:"required"`
	Required bool          `json:"required"`
	Options  []string      `json:"options,omitempty"`
	Default  any           `json:"default,omitempty"`
}

// ToolStatus tracks a tool through its lifecycle.
type ToolStatus string

const (
	ToolStatusDraft     ToolStatus = "draft"
	ToolStatusPublished ToolStatus = "published"
	ToolStatusArchived  ToolStatus = "archived"
)

// Tool is a visual-builder tool: declared inputs, an ordered logic step
// list and an output template. Published tools are invocable from
// workflows as tool nodes.
//
// Run outcomes are counted separately; RunCount is the sum of both.
type Tool struct {
	ID          string     `json:"id"          validate:"required"`
	UserID      string     `json:"user_id"     validate:"required"`
	Name        string     `json:"name"        validate:"required"`
	Description string     `json:"description,omitempty"`
	Status      ToolStatus `json:"status"`

	Inputs         []ToolInput  `json:"inputs"`
	Logic          []*LogicStep `json:"logic"`
	OutputTemplate string       `json:"output_template,omitempty"`

	RunCount     int64 `json:"run_count"`
	SuccessCount int64 `json:"success_count"`
	FailureCount int64 `json:"failure_count"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// IsPublished reports whether the tool can be invoked from workflows.
func (t *Tool) IsPublished() bool {
	return t.Status == ToolStatusPublished
}

// InputByName returns the declared input with the given name.
func (t *Tool) InputByName(name string) (*ToolInput, bool) {
	for i := range t.Inputs {
		if t.Inputs[i].Name == name {
			return &t.Inputs[i], true
		}
	}

	return nil, false
}
