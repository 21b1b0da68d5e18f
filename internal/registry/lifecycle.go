package registry

import (
	"context"
	"sync"

	"github.com/activerow/activerow/internal/core"
)

// HookFunc is called synchronously when a table schema enters or leaves the
// registry. A hook error aborts the operation that triggered it.
type HookFunc func(ctx context.Context, tableName string, schema *core.Schema) error

// LifecycleManager holds the hooks the schema registry fires around
// registration and removal. Hooks for each event run in the order they were
// added.
type LifecycleManager struct {
	mu           sync.RWMutex
	onRegister   []HookFunc
	onUnregister []HookFunc
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// OnRegister adds a hook that fires when a table schema is first registered.
func (lm *LifecycleManager) OnRegister(fn HookFunc) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.onRegister = append(lm.onRegister, fn)
}

// OnUnregister adds a hook that fires when a table schema is removed.
func (lm *LifecycleManager) OnUnregister(fn HookFunc) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.onUnregister = append(lm.onUnregister, fn)
}

// HookCount returns the total number of hooks across both events.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.onRegister) + len(lm.onUnregister)
}

func (lm *LifecycleManager) fireRegister(ctx context.Context, tableName string, schema *core.Schema) error {
	return fire(ctx, lm.snapshot(&lm.onRegister), tableName, schema)
}

func (lm *LifecycleManager) fireUnregister(ctx context.Context, tableName string, schema *core.Schema) error {
	return fire(ctx, lm.snapshot(&lm.onUnregister), tableName, schema)
}

// snapshot copies a hook list under the read lock so hooks added concurrently
// do not affect an in-flight firing.
func (lm *LifecycleManager) snapshot(hooks *[]HookFunc) []HookFunc {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	copied := make([]HookFunc, len(*hooks))
	copy(copied, *hooks)
	return copied
}

// fire runs hooks in order, stopping at the first error.
func fire(ctx context.Context, hooks []HookFunc, tableName string, schema *core.Schema) error {
	for _, hook := range hooks {
		if err := hook(ctx, tableName, schema); err != nil {
			return err
		}
	}
	return nil
}
