package file

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

const connectionsDir = "connections"

// ConnectionRepository stores one JSON document per integration
// connection. Tokens are stored as-is; the file backend is for local
// development only.
type ConnectionRepository struct {
	store *Persistence
}

// Save writes the connection document.
func (r *ConnectionRepository) Save(_ context.Context, connection *models.IntegrationConnection) error {
	return r.store.writeJSON(connectionsDir, connection.ID, connection)
}

// GetByID loads a connection by id.
func (r *ConnectionRepository) GetByID(_ context.Context, id string) (*models.IntegrationConnection, error) {
	var connection models.IntegrationConnection
	if err := r.store.readJSON(connectionsDir, id, &connection, persistence.ErrConnectionNotFound); err != nil {
		return nil, err
	}

	return &connection, nil
}

// ListByUser returns the user's connections.
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*models.IntegrationConnection, error) {
	ids, err := r.store.listIDs(connectionsDir)
	if err != nil {
		return nil, err
	}

	connections := make([]*models.IntegrationConnection, 0, len(ids))

	for _, id := range ids {
		connection, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if connection.UserID == userID {
			connections = append(connections, connection)
		}
	}

	return connections, nil
}

// Delete removes a connection document.
func (r *ConnectionRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(connectionsDir, id, persistence.ErrConnectionNotFound)
}
