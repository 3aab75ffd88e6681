package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// WorkflowRepository stores workflow definitions with the graph held in
// JSONB columns.
type WorkflowRepository struct {
	db *sql.DB
}

// Save upserts the workflow row.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := marshalJSONB(workflow.Nodes)
	if err != nil {
		return persistence.NewStorageError("save workflow", workflow.ID, err)
	}

	edges, err := marshalJSONB(workflow.Edges)
	if err != nil {
		return persistence.NewStorageError("save workflow", workflow.ID, err)
	}

	variables, err := marshalJSONB(workflow.Variables)
	if err != nil {
		return persistence.NewStorageError("save workflow", workflow.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, description, is_active, nodes, edges, variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			variables = EXCLUDED.variables,
			updated_at = EXCLUDED.updated_at
	`, workflow.ID, workflow.UserID, workflow.Name, workflow.Description, workflow.IsActive,
		nodes, edges, variables, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewStorageError("save workflow", workflow.ID, err)
	}

	return nil
}

// GetByID loads a workflow by id.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, is_active, nodes, edges, variables, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`, id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return nil, persistence.NewStorageError("get workflow", id, err)
	}

	return workflow, nil
}

// ListByUser returns the user's workflows, newest first.
func (r *WorkflowRepository) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, is_active, nodes, edges, variables, created_at, updated_at
		FROM workflows
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, persistence.NewStorageError("list workflows", userID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStorageError("list workflows", userID, err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("list workflows", userID, err)
	}

	return workflows, nil
}

// Delete removes a workflow row.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewStorageError("delete workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("delete workflow", id, err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow  models.Workflow
		nodes     []byte
		edges     []byte
		variables []byte
	)

	err := row.Scan(&workflow.ID, &workflow.UserID, &workflow.Name, &workflow.Description,
		&workflow.IsActive, &nodes, &edges, &variables, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("workflow %s nodes: %w", workflow.ID, err)
	}

	if err := unmarshalJSONB(edges, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("workflow %s edges: %w", workflow.ID, err)
	}

	if err := unmarshalJSONB(variables, &workflow.Variables); err != nil {
		return nil, fmt.Errorf("workflow %s variables: %w", workflow.ID, err)
	}

	return &workflow, nil
}
