package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// ConnectionRepository stores integration credentials.
type ConnectionRepository struct {
	db *sql.DB
}

// Save upserts the connection row.
func (r *ConnectionRepository) Save(ctx context.Context, connection *models.IntegrationConnection) error {
	scopes, err := marshalJSONB(connection.Scopes)
	if err != nil {
		return persistence.NewStorageError("save connection", connection.ID, err)
	}

	metadata, err := marshalJSONB(connection.Metadata)
	if err != nil {
		return persistence.NewStorageError("save connection", connection.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO integration_connections
			(id, user_id, provider, access_token, refresh_token, scopes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			scopes = EXCLUDED.scopes,
			metadata = EXCLUDED.metadata
	`, connection.ID, connection.UserID, connection.Provider,
		connection.AccessToken, connection.RefreshToken, scopes, metadata)
	if err != nil {
		return persistence.NewStorageError("save connection", connection.ID, err)
	}

	return nil
}

// GetByID loads a connection by id.
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*models.IntegrationConnection, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, scopes, metadata
		FROM integration_connections
		WHERE id = $1
	`, id)

	connection, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrConnectionNotFound
	}

	if err != nil {
		return nil, persistence.NewStorageError("get connection", id, err)
	}

	return connection, nil
}

// ListByUser returns the user's connections.
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*models.IntegrationConnection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, scopes, metadata
		FROM integration_connections
		WHERE user_id = $1
		ORDER BY provider ASC
	`, userID)
	if err != nil {
		return nil, persistence.NewStorageError("list connections", userID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var connections []*models.IntegrationConnection

	for rows.Next() {
		connection, err := scanConnection(rows)
		if err != nil {
			return nil, persistence.NewStorageError("list connections", userID, err)
		}

		connections = append(connections, connection)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStorageError("list connections", userID, err)
	}

	return connections, nil
}

// Delete removes a connection row.
func (r *ConnectionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM integration_connections WHERE id = $1", id)
	if err != nil {
		return persistence.NewStorageError("delete connection", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("delete connection", id, err)
	}

	if affected == 0 {
		return persistence.ErrConnectionNotFound
	}

	return nil
}

func scanConnection(row rowScanner) (*models.IntegrationConnection, error) {
	var (
		connection models.IntegrationConnection
		scopes     []byte
		metadata   []byte
	)

	err := row.Scan(&connection.ID, &connection.UserID, &connection.Provider,
		&connection.AccessToken, &connection.RefreshToken, &scopes, &metadata)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(scopes, &connection.Scopes); err != nil {
		return nil, fmt.Errorf("connection %s scopes: %w", connection.ID, err)
	}

	if err := unmarshalJSONB(metadata, &connection.Metadata); err != nil {
		return nil, fmt.Errorf("connection %s metadata: %w", connection.ID, err)
	}

	return &connection, nil
}
