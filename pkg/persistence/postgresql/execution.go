package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// ExecutionRepository stores execution records and per-step rows.
type ExecutionRepository struct {
	db *sql.DB
}

// SaveExecution inserts the execution row.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerData, err := marshalJSONB(execution.TriggerData)
	if err != nil {
		return persistence.NewStorageError("save execution", execution.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions
			(id, workflow_id, user_id, status, trigger_type, trigger_data, started_at,
			 completed_at, duration_ms, error_message, error_step, success_count, failure_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, execution.ID, execution.WorkflowID, execution.UserID, execution.Status,
		execution.TriggerType, triggerData, execution.StartedAt,
		nullTime(execution.CompletedAt), nullInt64(execution.DurationMs),
		execution.ErrorMessage, execution.ErrorStep, execution.SuccessCount, execution.FailureCount)
	if err != nil {
		return persistence.NewStorageError("save execution", execution.ID, err)
	}

	return nil
}

// UpdateExecution updates the mutable fields of the execution row.
func (r *ExecutionRepository) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = $2, completed_at = $3, duration_ms = $4, error_message = $5,
			error_step = $6, success_count = $7, failure_count = $8
		WHERE id = $1
	`, execution.ID, execution.Status, nullTime(execution.CompletedAt), nullInt64(execution.DurationMs),
		execution.ErrorMessage, execution.ErrorStep, execution.SuccessCount, execution.FailureCount)
	if err != nil {
		return persistence.NewStorageError("update execution", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("update execution", execution.ID, err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

// GetExecution loads an execution record by id.
func (r *ExecutionRepository) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, user_id, status, trigger_type, trigger_data, started_at,
			   completed_at, duration_ms, error_message, error_step, success_count, failure_count
		FROM workflow_executions
		WHERE id = $1
	`, id)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, persistence.NewStorageError("get execution", id, err)
	}

	return execution, nil
}

// ListExecutions returns executions matching the filter, newest first.
func (r *ExecutionRepository) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, workflow_id, user_id, status, trigger_type, trigger_data, started_at,
			   completed_at, duration_ms, error_message, error_step, success_count, failure_count
		FROM workflow_executions
		WHERE 1=1
	`)

	args := make([]any, 0, 5)

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		fmt.Fprintf(&query, " AND workflow_id = $%d", len(args))
	}

	if opts.UserID != "" {
		args = append(args, opts.UserID)
		fmt.Fprintf(&query, " AND user_id = $%d", len(args))
	}

	if opts.Status != "" {
		args = append(args, opts.Status)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}

	query.WriteString(" ORDER BY started_at DESC")

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&query, " OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, persistence.NewStorageError("list executions", opts.WorkflowID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStorageError("list executions", opts.WorkflowID, err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("list executions", opts.WorkflowID, err)
	}

	return executions, nil
}

// SaveStep inserts a step row.
func (r *ExecutionRepository) SaveStep(ctx context.Context, step *models.ExecutionStep) error {
	inputData, err := marshalJSONB(step.InputData)
	if err != nil {
		return persistence.NewStorageError("save step", step.ID, err)
	}

	outputData, err := marshalJSONB(step.OutputData)
	if err != nil {
		return persistence.NewStorageError("save step", step.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_steps
			(id, execution_id, step_id, status, input_data, output_data, error_message,
			 started_at, completed_at, duration_ms, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, step.ID, step.ExecutionID, step.StepID, step.Status, inputData, outputData,
		step.ErrorMessage, step.StartedAt, nullTime(step.CompletedAt), step.DurationMs, step.RetryCount)
	if err != nil {
		return persistence.NewStorageError("save step", step.ID, err)
	}

	return nil
}

// UpdateStep updates the mutable fields of a step row.
func (r *ExecutionRepository) UpdateStep(ctx context.Context, step *models.ExecutionStep) error {
	outputData, err := marshalJSONB(step.OutputData)
	if err != nil {
		return persistence.NewStorageError("update step", step.ID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_steps
		SET status = $2, output_data = $3, error_message = $4, completed_at = $5,
			duration_ms = $6, retry_count = $7
		WHERE id = $1
	`, step.ID, step.Status, outputData, step.ErrorMessage,
		nullTime(step.CompletedAt), step.DurationMs, step.RetryCount)
	if err != nil {
		return persistence.NewStorageError("update step", step.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("update step", step.ID, err)
	}

	if affected == 0 {
		return persistence.ErrStepNotFound
	}

	return nil
}

// StepsByExecution returns the execution's step rows in execution
// order.
func (r *ExecutionRepository) StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, step_id, status, input_data, output_data, error_message,
			   started_at, completed_at, duration_ms, retry_count
		FROM execution_steps
		WHERE execution_id = $1
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, persistence.NewStorageError("list steps", executionID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	steps := make([]*models.ExecutionStep, 0)

	for rows.Next() {
		var (
			step        models.ExecutionStep
			inputData   []byte
			outputData  []byte
			completedAt sql.NullTime
		)

		err := rows.Scan(&step.ID, &step.ExecutionID, &step.StepID, &step.Status,
			&inputData, &outputData, &step.ErrorMessage, &step.StartedAt,
			&completedAt, &step.DurationMs, &step.RetryCount)
		if err != nil {
			return nil, persistence.NewStorageError("list steps", executionID, err)
		}

		if err := unmarshalJSONB(inputData, &step.InputData); err != nil {
			return nil, persistence.NewStorageError("list steps", executionID, err)
		}

		if err := unmarshalJSONB(outputData, &step.OutputData); err != nil {
			return nil, persistence.NewStorageError("list steps", executionID, err)
		}

		step.CompletedAt = timePtr(completedAt)
		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("list steps", executionID, err)
	}

	return steps, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution   models.WorkflowExecution
		triggerData []byte
		completedAt sql.NullTime
		durationMs  sql.NullInt64
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.UserID, &execution.Status,
		&execution.TriggerType, &triggerData, &execution.StartedAt, &completedAt, &durationMs,
		&execution.ErrorMessage, &execution.ErrorStep, &execution.SuccessCount, &execution.FailureCount)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(triggerData, &execution.TriggerData); err != nil {
		return nil, fmt.Errorf("execution %s trigger data: %w", execution.ID, err)
	}

	execution.CompletedAt = timePtr(completedAt)
	execution.DurationMs = int64Ptr(durationMs)

	return &execution, nil
}
