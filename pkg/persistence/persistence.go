// Package persistence provides the data storage abstraction for
// workflows, executions, tools and integration connections.
package persistence

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// Persistence is the storage entry point. Implementations expose
// repositories per aggregate; all methods are safe for concurrent use.
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Tools() ToolRepository
	Connections() ConnectionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListExecutionsOptions filters and paginates execution listings.
type ListExecutionsOptions struct {
	WorkflowID string
	UserID     string
	Status     models.ExecutionStatus
	Limit      int
	Offset     int
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores execution records and their per-step rows.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListExecutions(ctx context.Context, opts ListExecutionsOptions) ([]*models.WorkflowExecution, error)

	SaveStep(ctx context.Context, step *models.ExecutionStep) error
	UpdateStep(ctx context.Context, step *models.ExecutionStep) error
	StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error)
}

// ToolRepository stores visual-builder tools.
type ToolRepository interface {
	Save(ctx context.Context, tool *models.Tool) error
	GetByID(ctx context.Context, id string) (*models.Tool, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Tool, error)
	Delete(ctx context.Context, id string) error
}

// ConnectionRepository stores integration credentials.
type ConnectionRepository interface {
	Save(ctx context.Context, connection *models.IntegrationConnection) error
	GetByID(ctx context.Context, id string) (*models.IntegrationConnection, error)
	ListByUser(ctx context.Context, userID string) ([]*models.IntegrationConnection, error)
	Delete(ctx context.Context, id string) error
}
