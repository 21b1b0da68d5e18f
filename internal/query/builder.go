// Package query implements the SELECT builder consumed by the record
// engines. It is deliberately small: scoped to one primary table, optional
// joined tables with aliases, an equality/IN predicate from a condition
// mapping, and single-row or multi-row execution. It is not a general SQL
// DSL.
package query

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/activerow/activerow/internal/core"
)

// Builder builds and executes SELECT statements against a database
// connection, implementing the core.Query contract.
type Builder struct {
	db     core.Database
	quoter core.Quoter
	from   []core.FromEntry
	where  map[string]interface{}
}

// New creates a builder scoped to a table. The table becomes the query's
// primary table for the whole builder lifetime.
func New(db core.Database, quoter core.Quoter, tableName string) *Builder {
	return &Builder{
		db:     db,
		quoter: quoter,
		from:   []core.FromEntry{{Alias: tableName, Table: tableName}},
	}
}

// NewFactory returns a QueryFactory producing builders over the given
// connection.
func NewFactory(db core.Database, quoter core.Quoter) core.QueryFactory {
	return func(tableName string) core.Query {
		return New(db, quoter, tableName)
	}
}

// Alias sets the alias under which the primary table is referenced.
func (b *Builder) Alias(alias string) *Builder {
	b.from[0].Alias = alias
	return b
}

// Join adds another table to the FROM clause, optionally aliased. An empty
// alias references the table under its own name.
func (b *Builder) Join(tableName, alias string) *Builder {
	if alias == "" {
		alias = tableName
	}
	b.from = append(b.from, core.FromEntry{Alias: alias, Table: tableName})
	return b
}

// TablesUsedInFrom returns every FROM entry in declaration order.
func (b *Builder) TablesUsedInFrom() []core.FromEntry {
	entries := make([]core.FromEntry, len(b.from))
	copy(entries, b.from)
	return entries
}

// PrimaryTable returns the entry the query was initially scoped to.
func (b *Builder) PrimaryTable() core.FromEntry {
	return b.from[0]
}

// Where sets the query's predicate. Keys are column references (bare or
// qualified), values are scalars, nil for IS NULL, or slices for IN lists.
func (b *Builder) Where(condition map[string]interface{}) core.Query {
	b.where = condition
	return b
}

// One executes the query and returns a single row, or nil when no row
// matched.
func (b *Builder) One(ctx context.Context) (map[string]interface{}, error) {
	rows, err := b.run(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// All executes the query and returns every matching row.
func (b *Builder) All(ctx context.Context) ([]map[string]interface{}, error) {
	return b.run(ctx, 0)
}

func (b *Builder) run(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	stmt, args := b.build(limit)
	log.Printf("[QUERY] Executing: %s with args: %v", stmt, args)

	rows, err := b.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// build renders the statement with dialect placeholders. Condition keys are
// rendered in sorted order so generated SQL is deterministic.
func (b *Builder) build(limit int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")

	for i, entry := range b.from {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.quoter.QuoteTableName(entry.Table))
		if entry.IsAlias() {
			sb.WriteString(" ")
			sb.WriteString(b.quoter.QuoteTableName(entry.Alias))
		}
	}

	var args []interface{}
	if len(b.where) > 0 {
		keys := make([]string, 0, len(b.where))
		for key := range b.where {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			column := b.quoter.QuoteColumnName(key)
			switch value := b.where[key].(type) {
			case nil:
				parts = append(parts, column+" IS NULL")
			case []interface{}:
				placeholders := make([]string, len(value))
				for i, item := range value {
					args = append(args, item)
					placeholders[i] = b.quoter.Placeholder(len(args))
				}
				parts = append(parts, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
			default:
				args = append(args, value)
				parts = append(parts, fmt.Sprintf("%s = %s", column, b.quoter.Placeholder(len(args))))
			}
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	return sb.String(), args
}
