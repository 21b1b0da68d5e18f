package schema

import (
	"context"
	"testing"

	"github.com/activerow/activerow/internal/core"
)

func testSchema(table string) *core.Schema {
	return &core.Schema{
		TableName:  table,
		Columns:    []core.Column{{Name: "id", Type: "INT"}},
		PrimaryKey: []string{"id"},
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	if got, err := cache.Get(ctx, "customer"); err != nil || got != nil {
		t.Fatalf("empty cache Get = (%v, %v)", got, err)
	}

	if err := cache.Put(ctx, "customer", testSchema("customer")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := cache.Get(ctx, "customer")
	if err != nil || got == nil || got.TableName != "customer" {
		t.Fatalf("Get after Put = (%v, %v)", got, err)
	}

	if err := cache.Invalidate(ctx, "customer"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if got, _ := cache.Get(ctx, "customer"); got != nil {
		t.Fatal("Get after Invalidate should miss")
	}

	cache.Put(ctx, "a", testSchema("a"))
	cache.Put(ctx, "b", testSchema("b"))
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got, _ := cache.Get(ctx, "a"); got != nil {
		t.Fatal("Get after Clear should miss")
	}
}

// countingProvider counts introspection calls.
type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) GetTableSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return testSchema(tableName), nil
}

func TestCachingProviderResolvesOnce(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{}
	caching := NewCachingProvider(provider, NewMemoryCache())

	for i := 0; i < 3; i++ {
		got, err := caching.GetTableSchema(ctx, "customer")
		if err != nil {
			t.Fatalf("GetTableSchema failed: %v", err)
		}
		if got.TableName != "customer" {
			t.Fatalf("schema table = %v", got.TableName)
		}
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}

	if err := caching.Invalidate(ctx, "customer"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := caching.GetTableSchema(ctx, "customer"); err != nil {
		t.Fatalf("GetTableSchema failed: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times after invalidate, want 2", provider.calls)
	}
}

func TestCachingProviderPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{err: core.ErrTableNotFound}
	caching := NewCachingProvider(provider, NewMemoryCache())

	if _, err := caching.GetTableSchema(ctx, "missing"); err == nil {
		t.Fatal("expected provider error")
	}
	// Failures are not cached.
	if _, err := caching.GetTableSchema(ctx, "missing"); err == nil {
		t.Fatal("expected provider error")
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
}
