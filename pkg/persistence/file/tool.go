package file

import (
	"context"
	"sort"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
)

const toolsDir = "tools"

// ToolRepository stores one JSON document per tool.
type ToolRepository struct {
	store *Persistence
}

// Save writes the tool document.
func (r *ToolRepository) Save(_ context.Context, tool *models.Tool) error {
	return r.store.writeJSON(toolsDir, tool.ID, tool)
}

// GetByID loads a tool by id.
func (r *ToolRepository) GetByID(_ context.Context, id string) (*models.Tool, error) {
	var tool models.Tool
	if err := r.store.readJSON(toolsDir, id, &tool, persistence.ErrToolNotFound); err != nil {
		return nil, err
	}

	return &tool, nil
}

// ListByUser returns the user's tools sorted by creation time, newest
// first.
func (r *ToolRepository) ListByUser(ctx context.Context, userID string) ([]*models.Tool, error) {
	ids, err := r.store.listIDs(toolsDir)
	if err != nil {
		return nil, err
	}

	tools := make([]*models.Tool, 0, len(ids))

	for _, id := range ids {
		tool, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if tool.UserID == userID {
			tools = append(tools, tool)
		}
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].CreatedAt.After(tools[j].CreatedAt)
	})

	return tools, nil
}

// Delete removes a tool document.
func (r *ToolRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(toolsDir, id, persistence.ErrToolNotFound)
}
