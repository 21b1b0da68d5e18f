package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/activerow/activerow/internal/core"
)

// SchemaMetadata describes a table schema held by the registry.
type SchemaMetadata struct {
	// TableName is the name of the table.
	TableName string

	// Schema is the resolved table schema.
	Schema *core.Schema

	// RegisteredAt is when the schema was first registered.
	RegisteredAt time.Time

	// RefreshedAt is when the schema was last replaced.
	RefreshedAt time.Time
}

// SchemaRegistry tracks the table schemas a session has resolved. It is the
// in-process source of truth for which tables are in use, with thread-safe
// registration and lifecycle hooks on registration and removal.
type SchemaRegistry struct {
	mu        sync.RWMutex
	tables    map[string]*SchemaMetadata
	lifecycle *LifecycleManager
}

// NewSchemaRegistry creates a schema registry.
func NewSchemaRegistry(lifecycle *LifecycleManager) *SchemaRegistry {
	if lifecycle == nil {
		lifecycle = NewLifecycleManager()
	}
	return &SchemaRegistry{
		tables:    make(map[string]*SchemaMetadata),
		lifecycle: lifecycle,
	}
}

// Register records a resolved schema. Registering an existing table replaces
// its schema and preserves the original registration time. Register hooks run
// only on first registration.
func (sr *SchemaRegistry) Register(ctx context.Context, tableName string, schema *core.Schema) error {
	if tableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if schema.TableName != tableName {
		return fmt.Errorf("schema table name %q does not match provided table name %q", schema.TableName, tableName)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := time.Now()
	if existing, exists := sr.tables[tableName]; exists {
		existing.Schema = schema
		existing.RefreshedAt = now
		return nil
	}

	if err := sr.lifecycle.fireRegister(ctx, tableName, schema); err != nil {
		return fmt.Errorf("register hook failed for table %q: %w", tableName, err)
	}

	sr.tables[tableName] = &SchemaMetadata{
		TableName:    tableName,
		Schema:       schema,
		RegisteredAt: now,
		RefreshedAt:  now,
	}
	return nil
}

// Get retrieves the schema for a table.
func (sr *SchemaRegistry) Get(tableName string) (*core.Schema, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	metadata, exists := sr.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("table %q is not registered", tableName)
	}
	return metadata.Schema, nil
}

// GetMetadata retrieves a copy of the metadata for a table.
func (sr *SchemaRegistry) GetMetadata(tableName string) (*SchemaMetadata, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	metadata, exists := sr.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("table %q is not registered", tableName)
	}

	copied := *metadata
	return &copied, nil
}

// Unregister removes a table from the registry, running unregister hooks
// first. Removing an unknown table is an error.
func (sr *SchemaRegistry) Unregister(ctx context.Context, tableName string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	metadata, exists := sr.tables[tableName]
	if !exists {
		return fmt.Errorf("table %q is not registered", tableName)
	}

	if err := sr.lifecycle.fireUnregister(ctx, tableName, metadata.Schema); err != nil {
		return fmt.Errorf("unregister hook failed for table %q: %w", tableName, err)
	}

	delete(sr.tables, tableName)
	return nil
}

// List returns every registered table name.
func (sr *SchemaRegistry) List() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.tables))
	for name := range sr.tables {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tables.
func (sr *SchemaRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.tables)
}

// GetLifecycleManager returns the lifecycle manager associated with this registry.
func (sr *SchemaRegistry) GetLifecycleManager() *LifecycleManager {
	return sr.lifecycle
}

// Clear removes all tables from the registry, running unregister hooks for
// each.
func (sr *SchemaRegistry) Clear(ctx context.Context) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	for tableName, metadata := range sr.tables {
		if err := sr.lifecycle.fireUnregister(ctx, tableName, metadata.Schema); err != nil {
			return fmt.Errorf("unregister hook failed during clear for table %q: %w", tableName, err)
		}
	}

	sr.tables = make(map[string]*SchemaMetadata)
	return nil
}
