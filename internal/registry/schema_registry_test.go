package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/activerow/activerow/internal/core"
)

func registrySchema(table string) *core.Schema {
	return &core.Schema{
		TableName:  table,
		Columns:    []core.Column{{Name: "id", Type: "INT"}},
		PrimaryKey: []string{"id"},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	sr := NewSchemaRegistry(nil)

	if err := sr.Register(ctx, "customer", registrySchema("customer")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	schema, err := sr.Get("customer")
	if err != nil || schema.TableName != "customer" {
		t.Fatalf("Get = (%v, %v)", schema, err)
	}
	if sr.Count() != 1 {
		t.Fatalf("Count = %d", sr.Count())
	}

	if _, err := sr.Get("unknown"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestRegistryRejectsMismatchedSchema(t *testing.T) {
	sr := NewSchemaRegistry(nil)
	err := sr.Register(context.Background(), "customer", registrySchema("order"))
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestRegistryReRegisterReplacesSchema(t *testing.T) {
	ctx := context.Background()
	sr := NewSchemaRegistry(nil)

	sr.Register(ctx, "customer", registrySchema("customer"))
	first, _ := sr.GetMetadata("customer")

	updated := registrySchema("customer")
	updated.Columns = append(updated.Columns, core.Column{Name: "name", Type: "VARCHAR(255)"})
	if err := sr.Register(ctx, "customer", updated); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	meta, _ := sr.GetMetadata("customer")
	if len(meta.Schema.Columns) != 2 {
		t.Fatalf("schema not replaced, columns = %d", len(meta.Schema.Columns))
	}
	if !meta.RegisteredAt.Equal(first.RegisteredAt) {
		t.Fatal("re-registering must preserve the original registration time")
	}
	if sr.Count() != 1 {
		t.Fatalf("Count = %d", sr.Count())
	}
}

func TestRegistryLifecycleHooks(t *testing.T) {
	ctx := context.Background()
	var calls []string

	lm := NewLifecycleManager()
	lm.OnRegister(func(ctx context.Context, tableName string, schema *core.Schema) error {
		calls = append(calls, "register:"+tableName)
		return nil
	})
	lm.OnUnregister(func(ctx context.Context, tableName string, schema *core.Schema) error {
		calls = append(calls, "unregister:"+tableName)
		return nil
	})
	if lm.HookCount() != 2 {
		t.Fatalf("HookCount = %d", lm.HookCount())
	}

	sr := NewSchemaRegistry(lm)
	sr.Register(ctx, "customer", registrySchema("customer"))
	// Replacement does not re-run register hooks.
	sr.Register(ctx, "customer", registrySchema("customer"))
	sr.Unregister(ctx, "customer")

	want := []string{"register:customer", "unregister:customer"}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("hook calls = %v, want %v", calls, want)
	}
}

func TestRegistryHookFailureAbortsRegistration(t *testing.T) {
	ctx := context.Background()
	hookErr := errors.New("not allowed")

	lm := NewLifecycleManager()
	lm.OnRegister(func(ctx context.Context, tableName string, schema *core.Schema) error {
		return hookErr
	})

	sr := NewSchemaRegistry(lm)
	if err := sr.Register(ctx, "customer", registrySchema("customer")); !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if sr.Count() != 0 {
		t.Fatal("failed registration must not be recorded")
	}
}

func TestRegistryClear(t *testing.T) {
	ctx := context.Background()
	sr := NewSchemaRegistry(nil)
	sr.Register(ctx, "a", registrySchema("a"))
	sr.Register(ctx, "b", registrySchema("b"))

	if err := sr.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if sr.Count() != 0 {
		t.Fatalf("Count after Clear = %d", sr.Count())
	}
}
