package core

import "context"

// FromEntry is one entry of a query's FROM clause. Alias equals Table for
// unaliased entries; a differing Alias marks a table alias.
type FromEntry struct {
	// Alias is the name the table is referenced by inside the query.
	Alias string

	// Table is the real table name.
	Table string
}

// IsAlias reports whether the entry references its table under an alias.
func (f FromEntry) IsAlias() bool {
	return f.Alias != f.Table
}

// Query is the contract exposed by the query-builder collaborator.
// Implementations build and execute a SELECT against one or more tables.
type Query interface {
	// TablesUsedInFrom returns every FROM entry in declaration order.
	TablesUsedInFrom() []FromEntry

	// PrimaryTable returns the entry the query was initially scoped to.
	// It stays stable regardless of joins added later.
	PrimaryTable() FromEntry

	// Where sets the query's predicate from a condition mapping.
	// Keys are column references, values are scalars or IN-lists.
	Where(condition map[string]interface{}) Query

	// One executes the query and returns a single row, or nil when no row
	// matched.
	One(ctx context.Context) (map[string]interface{}, error)
}

// QueryFactory builds a fresh query scoped to the given table. The record
// engines use it for refresh and relation loading.
type QueryFactory func(tableName string) Query
