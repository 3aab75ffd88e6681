package file

import (
	"context"
	"sort"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository stores one JSON document per workflow.
type WorkflowRepository struct {
	store *Persistence
}

// Save writes the workflow document.
func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return r.store.writeJSON(workflowsDir, workflow.ID, workflow)
}

// GetByID loads a workflow by id.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := r.store.readJSON(workflowsDir, id, &workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return &workflow, nil
}

// ListByUser returns the user's workflows sorted by creation time,
// newest first.
func (r *WorkflowRepository) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	ids, err := r.store.listIDs(workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workflow.UserID == userID {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// Delete removes a workflow document.
func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(workflowsDir, id, persistence.ErrWorkflowNotFound)
}
