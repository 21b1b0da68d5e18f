package main

import (
	"context"
	"log"
	"time"

	"github.com/activerow/activerow/internal/registry"
	"github.com/activerow/activerow/pkg/activerow"
)

// Demonstrates the record lifecycle against an in-memory SQLite database:
// schema introspection, insert with generated-key reconciliation, refresh,
// and condition-filtered lookup.
func main() {
	config := &activerow.Config{
		Database: registry.DatabaseConfig{
			Type: "sqlite",
			Path: ":memory:",
		},
		SchemaCache: registry.SchemaCacheConfig{
			Type: "memory",
			TTL:  1 * time.Hour,
		},
		Events: registry.EventsConfig{
			Enabled:     true,
			Type:        "memory",
			PublishRate: 100,
		},
	}

	session, err := activerow.Open(config)
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	defer session.Close()

	ctx := context.Background()

	_, err = session.Database().Exec(ctx, `
		CREATE TABLE customer (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			created_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}

	// Insert: the generated id comes back into the record.
	rec, err := session.NewRecord(ctx, "customer")
	if err != nil {
		log.Fatalf("Failed to create record: %v", err)
	}
	if err := rec.Set("name", "Qiang"); err != nil {
		log.Fatalf("Failed to set attribute: %v", err)
	}
	if err := rec.Set("email", "qiang@example.com"); err != nil {
		log.Fatalf("Failed to set attribute: %v", err)
	}

	ok, err := rec.Insert(ctx)
	if err != nil {
		log.Fatalf("Insert failed: %v", err)
	}
	if !ok {
		log.Fatalf("Insert was not accepted")
	}
	log.Printf("Inserted customer, primary key: %v", rec.PrimaryKeyValues())
	log.Printf("Record is new: %v, dirty attributes: %v", rec.IsNew(), rec.Dirty())

	// Update the row behind the record's back, then refresh.
	if _, err := session.Database().Exec(ctx, "UPDATE customer SET name = ? WHERE id = ?", "Alex", 1); err != nil {
		log.Fatalf("Update failed: %v", err)
	}
	refreshed, err := rec.Refresh(ctx)
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}
	name, _ := rec.Get("name")
	log.Printf("Refreshed: %v, name is now %v", refreshed, name)

	// Look up by a validated condition.
	found, err := session.FindOne(ctx, "customer", map[string]interface{}{"name": "Alex"})
	if err != nil {
		log.Fatalf("FindOne failed: %v", err)
	}
	if found == nil {
		log.Fatalf("Expected a matching customer")
	}
	log.Printf("Found customer: %v", found.Attributes())

	// A condition key that is not a column is rejected outright.
	if _, err := session.FindOne(ctx, "customer", map[string]interface{}{"name; DROP TABLE customer": "x"}); err != nil {
		log.Printf("Hostile condition rejected: %v", err)
	}

	log.Printf("Registered tables: %v", session.Registry().List())
}
