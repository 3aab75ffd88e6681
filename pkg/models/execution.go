package models

import "time"

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled" // Reserved, no transition exposed yet
)

// WorkflowExecution is the durable record of one workflow run. It is
// created in running state atomically with the start of traversal and
// transitions exactly once to a terminal state.
type WorkflowExecution struct {
	ID           string          `json:"id"          validate:"required"`
	WorkflowID   string          `json:"workflow_id" validate:"required"`
	UserID       string          `json:"user_id"     validate:"required"`
	Status       ExecutionStatus `json:"status"      validate:"required"`
	TriggerType  string          `json:"trigger_type,omitempty"`
	TriggerData  map[string]any  `json:"trigger_data,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	DurationMs   *int64          `json:"duration_ms,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorStep    string          `json:"error_step,omitempty"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
}

// IsTerminal reports whether the execution has reached a final status.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted ||
		e.Status == ExecutionStatusFailed ||
		e.Status == ExecutionStatusCancelled
}

// StepStatus is the lifecycle state of a single executed node.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// ExecutionStep is the durable record of one visited node. It is
// inserted as running before the runner executes and updated to a
// terminal status exactly once afterwards. A step is never re-executed
// for the same execution id.
type ExecutionStep struct {
	ID           string     `json:"id"           validate:"required"`
	ExecutionID  string     `json:"execution_id" validate:"required"`
	StepID       string     `json:"step_id"      validate:"required"` // Node id in the workflow graph
	Status       StepStatus `json:"status"       validate:"required"`
	InputData    any        `json:"input_data,omitempty"`
	OutputData   any        `json:"output_data,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	RetryCount   int        `json:"retry_count"`
}

// IntegrationConnection is a credential record loaded once per
// execution and treated as a static snapshot by every runner.
type IntegrationConnection struct {
	ID           string         `json:"id"       validate:"required"`
	UserID       string         `json:"user_id"`
	Provider     string         `json:"provider" validate:"required"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	Scopes       []string       `json:"scopes,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
