// Package database provides the dialect implementations of the schema
// provider, identifier quoter, and command executor contracts over
// database/sql connections.
package database

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/activerow/activerow/internal/core"
)

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlResult wraps sql.Result to implement core.Result.
type sqlResult struct {
	result sql.Result
}

func (r *sqlResult) LastInsertId() (int64, error) {
	return r.result.LastInsertId()
}

func (r *sqlResult) RowsAffected() (int64, error) {
	return r.result.RowsAffected()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx *sql.Tx
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTransaction) Query(query string, args ...interface{}) (core.Rows, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTransaction) Exec(query string, args ...interface{}) (core.Result, error) {
	result, err := t.tx.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlResult{result: result}, nil
}

// buildInsert renders an INSERT statement with dialect placeholders. Columns
// are emitted in sorted order so generated SQL is deterministic. An empty
// value map yields an empty column list; callers handle the dialect-specific
// all-defaults form.
func buildInsert(quoter core.Quoter, tableName string, values map[string]interface{}) (string, []interface{}) {
	columns := make([]string, 0, len(values))
	for name := range values {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, name := range columns {
		quoted[i] = quoter.QuoteColumnName(name)
		placeholders[i] = quoter.Placeholder(i + 1)
		args[i] = values[name]
	}

	stmt := "INSERT INTO " + quoter.QuoteTableName(tableName) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	return stmt, args
}

// quoteIdentifier quotes a possibly qualified identifier with the given quote
// characters. Already-quoted identifiers and "*" pass through unchanged.
func quoteIdentifier(name, open, close string) string {
	if name == "*" || strings.Contains(name, open) {
		return name
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		return quoteIdentifier(name[:idx], open, close) + "." + quoteIdentifier(name[idx+1:], open, close)
	}
	return open + name + close
}

// quoteFragment replaces every [[identifier]] placeholder in a SQL fragment
// with the quoted identifier.
func quoteFragment(fragment, open, close string) string {
	var sb strings.Builder
	rest := fragment
	for {
		start := strings.Index(rest, "[[")
		if start < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		end := strings.Index(rest[start:], "]]")
		if end < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		sb.WriteString(rest[:start])
		sb.WriteString(quoteIdentifier(rest[start+2:start+end], open, close))
		rest = rest[start+end+2:]
	}
}
