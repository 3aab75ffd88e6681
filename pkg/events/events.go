// Package events defines the event types published over the bus for
// workflow execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowmatic/flowmatic/pkg/models"
)

type EventType string

// Topic is the bus topic carrying all execution lifecycle events.
const Topic = "flowmatic.executions"

// RunRequestTopic carries run requests from the API and schedulers to
// the runner workers.
const RunRequestTopic = "flowmatic.run_requests"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	StepFinishedEvent       EventType = "execution.step.finished"
	ToolInvokedEvent        EventType = "tool.invoked"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for an event.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// ExecutionRequested asks a runner worker to execute a workflow.
type ExecutionRequested struct {
	BaseEvent

	UserID      string         `json:"user_id"`
	TriggerType string         `json:"trigger_type,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

// ExecutionStarted marks the creation of a running execution record.
type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// StepFinished reports one node reaching a terminal step status.
type StepFinished struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	NodeID      string            `json:"node_id"`
	Status      models.StepStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
}

func (e StepFinished) GetType() EventType {
	return StepFinishedEvent
}

// ExecutionCompleted marks a successful terminal transition.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	StepCount   int           `json:"step_count"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed marks a failed terminal transition with the node that
// caused it.
type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	ErrorStep   string        `json:"error_step,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ToolInvoked reports one live run of a published tool.
type ToolInvoked struct {
	BaseEvent

	ToolID     string `json:"tool_id"`
	UserID     string `json:"user_id,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func (e ToolInvoked) GetType() EventType {
	return ToolInvokedEvent
}
