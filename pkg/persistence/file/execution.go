package file

import (
	"context"
	"sort"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

const (
	executionsDir = "executions"
	stepsDir      = "steps"
)

// ExecutionRepository stores execution records plus per-execution step
// lists as JSON documents.
type ExecutionRepository struct {
	store *Persistence
}

// SaveExecution writes the execution record.
func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	return r.store.writeJSON(executionsDir, execution.ID, execution)
}

// UpdateExecution overwrites the execution record.
func (r *ExecutionRepository) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	if _, err := r.GetExecution(ctx, execution.ID); err != nil {
		return err
	}

	return r.store.writeJSON(executionsDir, execution.ID, execution)
}

// GetExecution loads an execution record by id.
func (r *ExecutionRepository) GetExecution(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution
	if err := r.store.readJSON(executionsDir, id, &execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return &execution, nil
}

// ListExecutions filters stored executions in memory. Fine for the file
// backend's scale.
func (r *ExecutionRepository) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	ids, err := r.store.listIDs(executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.GetExecution(ctx, id)
		if err != nil {
			return nil, err
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.UserID != "" && execution.UserID != opts.UserID {
			continue
		}

		if opts.Status != "" && execution.Status != opts.Status {
			continue
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(executions) {
			return []*models.WorkflowExecution{}, nil
		}

		executions = executions[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(executions) {
		executions = executions[:opts.Limit]
	}

	return executions, nil
}

// stepList is the stored per-execution step document.
type stepList struct {
	Steps []*models.ExecutionStep `json:"steps"`
}

// SaveStep appends a step row to the execution's step document.
func (r *ExecutionRepository) SaveStep(_ context.Context, step *models.ExecutionStep) error {
	var list stepList

	err := r.store.readJSON(stepsDir, step.ExecutionID, &list, persistence.ErrStepNotFound)
	if err != nil && err != persistence.ErrStepNotFound {
		return err
	}

	list.Steps = append(list.Steps, step)

	return r.store.writeJSON(stepsDir, step.ExecutionID, &list)
}

// UpdateStep replaces a step row in place.
func (r *ExecutionRepository) UpdateStep(_ context.Context, step *models.ExecutionStep) error {
	var list stepList
	if err := r.store.readJSON(stepsDir, step.ExecutionID, &list, persistence.ErrStepNotFound); err != nil {
		return err
	}

	for i, existing := range list.Steps {
		if existing.ID == step.ID {
			list.Steps[i] = step

			return r.store.writeJSON(stepsDir, step.ExecutionID, &list)
		}
	}

	return persistence.ErrStepNotFound
}

// StepsByExecution returns the execution's step rows in insertion
// order, which is execution order.
func (r *ExecutionRepository) StepsByExecution(_ context.Context, executionID string) ([]*models.ExecutionStep, error) {
	var list stepList

	err := r.store.readJSON(stepsDir, executionID, &list, persistence.ErrStepNotFound)
	if err == persistence.ErrStepNotFound {
		return []*models.ExecutionStep{}, nil
	}

	if err != nil {
		return nil, err
	}

	return list.Steps, nil
}
