// Package file provides file-based persistence for local development
// and tests. Each aggregate is stored as one JSON document per entity
// under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flowmatic/flowmatic/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflows   *WorkflowRepository
	executions  *ExecutionRepository
	tools       *ToolRepository
	connections *ConnectionRepository
}

// NewPersistence creates a file persistence rooted at the given
// directory. Accepts a "file://" prefix so it can be constructed from a
// database URL setting.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflows = &WorkflowRepository{store: p}
	p.executions = &ExecutionRepository{store: p}
	p.tools = &ToolRepository{store: p}
	p.connections = &ConnectionRepository{store: p}

	return p
}

// Workflows returns the workflow repository.
func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflows
}

// Executions returns the execution repository.
func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executions
}

// Tools returns the tool repository.
func (p *Persistence) Tools() persistence.ToolRepository {
	return p.tools
}

// Connections returns the connection repository.
func (p *Persistence) Connections() persistence.ConnectionRepository {
	return p.connections
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// writeJSON marshals the entity into <root>/<kind>/<id>.json.
func (p *Persistence) writeJSON(kind, id string, entity any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// readJSON unmarshals <root>/<kind>/<id>.json into target. Returns
// notFound when the file does not exist.
func (p *Persistence) readJSON(kind, id string, target any, notFound error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(p.root, kind, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// listIDs returns the entity ids stored under <root>/<kind>.
func (p *Persistence) listIDs(kind string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(p.root, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// remove deletes <root>/<kind>/<id>.json. Returns notFound when the
// file does not exist.
func (p *Persistence) remove(kind, id string, notFound error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(filepath.Join(p.root, kind, id+".json"))
	if os.IsNotExist(err) {
		return notFound
	}

	return err
}
