package models

import (
	"log/slog"
	"time"
)

// LogEntry is one line of the execution's append-only log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	NodeID    string    `json:"node_id,omitempty"`
	Message   string    `json:"message"`
}

// ExecutionContext is the mutable, execution-scoped state threaded
// through every runner during one run. Each execution owns a fresh
// context; nothing here is shared across concurrent runs.
//
// StepOutputs accumulates monotonically: once a node completes its
// output is fixed for the remainder of the run.
type ExecutionContext struct {
	WorkflowID  string                            `json:"workflow_id"`
	ExecutionID string                            `json:"execution_id"`
	UserID      string                            `json:"user_id"`
	TriggerData map[string]any                    `json:"trigger_data,omitempty"`
	Variables   map[string]any                    `json:"variables,omitempty"`
	StepOutputs map[string]any                    `json:"step_outputs,omitempty"`
	Connections map[string]*IntegrationConnection `json:"-"`
	StartedAt   time.Time                         `json:"started_at"`
	Logs        []LogEntry                        `json:"logs,omitempty"`

	Logger *slog.Logger `json:"-"`
}

// NewExecutionContext builds a fresh context for one run.
func NewExecutionContext(workflowID, executionID, userID string, triggerData map[string]any) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		UserID:      userID,
		TriggerData: triggerData,
		Variables:   make(map[string]any),
		StepOutputs: make(map[string]any),
		Connections: make(map[string]*IntegrationConnection),
		StartedAt:   time.Now().UTC(),
		Logger:      slog.Default(),
	}
}

// SetStepOutput records a node's output. The first write wins; a second
// write for the same node id is ignored so completed outputs stay fixed.
func (c *ExecutionContext) SetStepOutput(nodeID string, output any) {
	if c.StepOutputs == nil {
		c.StepOutputs = make(map[string]any)
	}

	if _, exists := c.StepOutputs[nodeID]; exists {
		return
	}

	c.StepOutputs[nodeID] = output
}

// StepOutput returns the recorded output for a node id.
func (c *ExecutionContext) StepOutput(nodeID string) (any, bool) {
	output, ok := c.StepOutputs[nodeID]

	return output, ok
}

// AppendLog adds an entry to the execution's ordered log.
func (c *ExecutionContext) AppendLog(level, nodeID, message string) {
	c.Logs = append(c.Logs, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		NodeID:    nodeID,
		Message:   message,
	})
}

// WithLogger returns a shallow copy of the context carrying the given logger.
func (c *ExecutionContext) WithLogger(logger *slog.Logger) *ExecutionContext {
	copied := *c
	copied.Logger = logger

	return &copied
}
