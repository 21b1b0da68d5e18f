package core

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned by a SchemaProvider when the requested table
// does not exist in the database.
var ErrTableNotFound = errors.New("table not found")

// Rows defines the interface for iterating over query results.
type Rows interface {
	// Next advances to the next row.
	Next() bool

	// Scan copies the current row's column values into dest.
	Scan(dest ...interface{}) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases the result set.
	Close() error

	// Err returns any error encountered during iteration.
	Err() error
}

// Result defines the interface for the outcome of a non-query statement.
type Result interface {
	// LastInsertId returns the database-generated id of the last insert.
	LastInsertId() (int64, error)

	// RowsAffected returns the number of rows changed by the statement.
	RowsAffected() (int64, error)
}

// Transaction defines the interface for an open database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	Query(query string, args ...interface{}) (Rows, error)
	Exec(query string, args ...interface{}) (Result, error)
}

// Database defines the low-level database access interface consumed by the
// query builder and the dialect implementations.
type Database interface {
	// Query executes a SELECT statement and returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a non-query statement and returns a result.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the connection pool.
	Close() error
}

// SchemaProvider resolves table schemas at runtime.
type SchemaProvider interface {
	// GetTableSchema returns the schema for a table, or ErrTableNotFound.
	GetTableSchema(ctx context.Context, tableName string) (*Schema, error)
}

// Quoter quotes identifiers for safe embedding in generated SQL.
type Quoter interface {
	// QuoteTableName quotes a table name, leaving already-quoted names intact.
	QuoteTableName(name string) string

	// QuoteColumnName quotes a column name, handling table.column references.
	QuoteColumnName(name string) string

	// QuoteSQL quotes every [[identifier]] placeholder in a SQL fragment.
	QuoteSQL(fragment string) string

	// Placeholder returns the parameter placeholder for the 1-based position.
	Placeholder(n int) string
}

// Executor performs write commands against a table.
type Executor interface {
	// InsertReturningKeys inserts values into the table and returns the
	// primary-key column values actually stored, including database-generated
	// ones. ok is false when the database did not accept the write; for a
	// keyless table ok is derived from the affected-row count and the key map
	// is empty. err is reserved for connectivity and statement faults.
	InsertReturningKeys(ctx context.Context, tableName string, values map[string]interface{}) (keys map[string]interface{}, ok bool, err error)
}

// Dialect bundles the collaborator contracts a record needs from one
// database connection.
type Dialect interface {
	SchemaProvider
	Quoter
	Executor
	Database
}
