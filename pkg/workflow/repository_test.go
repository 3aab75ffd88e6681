package workflow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence/file"
	"github.com/flowmatic/flowmatic/pkg/registry"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.HealthCheck(context.Background()))

	return NewRepository(store)
}

func TestRepositoryCreateStampsIdentity(t *testing.T) {
	repo := newRepository(t)

	created, err := repo.Create(context.Background(), &models.Workflow{
		Name:   "Order notifications",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
}

func TestRepositoryCreateRejectsInvalidWorkflow(t *testing.T) {
	repo := newRepository(t)

	_, err := repo.Create(context.Background(), &models.Workflow{Name: "ab", UserID: "user-1"})
	assert.Error(t, err)

	_, err = repo.Create(context.Background(), &models.Workflow{Name: "Valid name"})
	assert.Error(t, err)
}

func TestRepositoryUpdatePreservesIdentity(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Workflow{Name: "Original", UserID: "user-1"})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, &models.Workflow{
		Name:   "Renamed flow",
		UserID: "someone-else",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	// Ownership cannot be reassigned through update.
	assert.Equal(t, "user-1", updated.UserID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestValidateGraph(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults(registry.Dependencies{Tools: nopInvoker{}, AIClient: &ai.StubClient{}})

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Broken graph",
		UserID: "user-1",
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeAction, Data: map[string]any{"action": "log"}},
			{ID: "a", Type: models.NodeTypeAction, Data: map[string]any{"action": "log"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "a", Target: "ghost"},
		},
	}

	problems := ValidateGraph(workflow, reg)

	assert.Contains(t, problems, `duplicate node id "a"`)
	assert.Contains(t, problems, "workflow has no trigger node")
	assert.Contains(t, problems, `edge "e1" references unknown target node "ghost"`)
}

func TestValidateGraphAcceptsWellFormedWorkflow(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaults(registry.Dependencies{Tools: nopInvoker{}, AIClient: &ai.StubClient{}})

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Well formed",
		UserID: "user-1",
		Nodes: []*models.Node{
			{ID: "trigger-1", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "log-1", Type: models.NodeTypeAction, Data: map[string]any{"action": "log", "message": "hi"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger-1", Target: "log-1"},
		},
	}

	assert.Empty(t, ValidateGraph(workflow, reg))
}
