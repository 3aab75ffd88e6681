package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// ErrWorkflowInactive is returned when execution is requested for a
// workflow that is not active.
var ErrWorkflowInactive = errors.New("workflow is not active")

var validate = validator.New()

// Repository wraps workflow storage with lifecycle rules: id and
// timestamp stamping, ownership checks and execution gating.
type Repository struct {
	persistence persistence.Persistence
}

// NewRepository creates a workflow repository.
func NewRepository(store persistence.Persistence) *Repository {
	return &Repository{persistence: store}
}

// Create validates and stores a new workflow.
func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := r.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update stores a modified workflow, preserving identity and creation
// time.
func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := r.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.UserID = existing.UserID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := r.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// FetchByID loads a workflow by id.
func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.Workflows().GetByID(ctx, id)
}

// FetchForExecution loads a workflow for a run. Workflows owned by a
// different user are reported as not found rather than forbidden, so
// ids don't leak across tenants. Inactive workflows refuse execution.
func (r *Repository) FetchForExecution(ctx context.Context, id, userID string) (*models.Workflow, error) {
	workflow, err := r.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if userID != "" && workflow.UserID != userID {
		return nil, persistence.ErrWorkflowNotFound
	}

	if !workflow.IsActive {
		return nil, ErrWorkflowInactive
	}

	return workflow, nil
}

// ListByUser returns the user's workflows.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	return r.persistence.Workflows().ListByUser(ctx, userID)
}

// Delete removes a workflow.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.persistence.Workflows().Delete(ctx, id)
}

// HealthCheck reports whether the storage layer is reachable.
func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}
