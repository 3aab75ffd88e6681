package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// ToolRepository stores visual-builder tools with inputs and logic held
// in JSONB columns.
type ToolRepository struct {
	db *sql.DB
}

// Save upserts the tool row.
func (r *ToolRepository) Save(ctx context.Context, tool *models.Tool) error {
	inputs, err := marshalJSONB(tool.Inputs)
	if err != nil {
		return persistence.NewStorageError("save tool", tool.ID, err)
	}

	logic, err := marshalJSONB(tool.Logic)
	if err != nil {
		return persistence.NewStorageError("save tool", tool.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tools
			(id, user_id, name, description, status, inputs, logic, output_template,
			 run_count, success_count, failure_count, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			inputs = EXCLUDED.inputs,
			logic = EXCLUDED.logic,
			output_template = EXCLUDED.output_template,
			run_count = EXCLUDED.run_count,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`, tool.ID, tool.UserID, tool.Name, tool.Description, tool.Status, inputs, logic,
		tool.OutputTemplate, tool.RunCount, tool.SuccessCount, tool.FailureCount,
		tool.CreatedAt, tool.UpdatedAt, nullTime(tool.PublishedAt))
	if err != nil {
		return persistence.NewStorageError("save tool", tool.ID, err)
	}

	return nil
}

// GetByID loads a tool by id.
func (r *ToolRepository) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, status, inputs, logic, output_template,
			   run_count, success_count, failure_count, created_at, updated_at, published_at
		FROM tools
		WHERE id = $1
	`, id)

	tool, err := scanTool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrToolNotFound
	}

	if err != nil {
		return nil, persistence.NewStorageError("get tool", id, err)
	}

	return tool, nil
}

// ListByUser returns the user's tools, newest first.
func (r *ToolRepository) ListByUser(ctx context.Context, userID string) ([]*models.Tool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, status, inputs, logic, output_template,
			   run_count, success_count, failure_count, created_at, updated_at, published_at
		FROM tools
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, persistence.NewStorageError("list tools", userID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var tools []*models.Tool

	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, persistence.NewStorageError("list tools", userID, err)
		}

		tools = append(tools, tool)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("list tools", userID, err)
	}

	return tools, nil
}

// Delete removes a tool row.
func (r *ToolRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tools WHERE id = $1", id)
	if err != nil {
		return persistence.NewStorageError("delete tool", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("delete tool", id, err)
	}

	if affected == 0 {
		return persistence.ErrToolNotFound
	}

	return nil
}

func scanTool(row rowScanner) (*models.Tool, error) {
	var (
		tool        models.Tool
		inputs      []byte
		logic       []byte
		publishedAt sql.NullTime
	)

	err := row.Scan(&tool.ID, &tool.UserID, &tool.Name, &tool.Description, &tool.Status,
		&inputs, &logic, &tool.OutputTemplate, &tool.RunCount, &tool.SuccessCount,
		&tool.FailureCount, &tool.CreatedAt, &tool.UpdatedAt, &publishedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(inputs, &tool.Inputs); err != nil {
		return nil, fmt.Errorf("tool %s inputs: %w", tool.ID, err)
	}

	if err := unmarshalJSONB(logic, &tool.Logic); err != nil {
		return nil, fmt.Errorf("tool %s logic: %w", tool.ID, err)
	}

	tool.PublishedAt = timePtr(publishedAt)

	return &tool, nil
}
