package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/activerow/activerow/internal/core"
)

// SQLiteDialect implements the core.Dialect contracts over a SQLite database
// file (or in-memory database): PRAGMA table_info introspection, double-quote
// identifier quoting, and key-returning inserts via last_insert_rowid.
type SQLiteDialect struct {
	db      *sql.DB
	schemas core.SchemaProvider
	closed  bool
}

// NewSQLiteDialect opens a SQLite database. Use ":memory:" for an in-memory
// database.
func NewSQLiteDialect(path string) (*SQLiteDialect, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes access internally; a single connection
	// avoids table-lock contention between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &SQLiteDialect{db: db}
	d.schemas = d
	return d, nil
}

// UseSchemaProvider replaces the schema lookup used internally by the
// executor, typically with a caching decorator.
func (s *SQLiteDialect) UseSchemaProvider(provider core.SchemaProvider) {
	s.schemas = provider
}

// Query executes a SELECT query and returns rows.
func (s *SQLiteDialect) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (s *SQLiteDialect) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &sqlResult{result: result}, nil
}

// BeginTx starts a new transaction.
func (s *SQLiteDialect) BeginTx(ctx context.Context) (core.Transaction, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx}, nil
}

// GetTableSchema introspects a table through PRAGMA table_info. Returns
// core.ErrTableNotFound when the table does not exist.
func (s *SQLiteDialect) GetTableSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}

	schema := &core.Schema{
		TableName: tableName,
		Columns:   []core.Column{},
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+s.QuoteTableName(tableName)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	// pk is the 1-based position of the column within the primary key, 0 for
	// non-key columns. Collected here and sorted below so composite keys keep
	// declaration order.
	type pkEntry struct {
		position int
		name     string
	}
	var pkEntries []pkEntry

	for rows.Next() {
		var cid, notNull, pk int
		var colName, colType string
		var colDefault sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &colDefault, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		column := core.Column{
			Name:     colName,
			Type:     colType,
			Nullable: notNull == 0,
		}
		if colDefault.Valid {
			column.Default = colDefault.String
		}
		schema.Columns = append(schema.Columns, column)

		if pk > 0 {
			pkEntries = append(pkEntries, pkEntry{position: pk, name: colName})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, tableName)
	}

	sort.Slice(pkEntries, func(i, j int) bool {
		return pkEntries[i].position < pkEntries[j].position
	})
	for _, entry := range pkEntries {
		schema.PrimaryKey = append(schema.PrimaryKey, entry.name)
	}

	// A single INTEGER primary key is the rowid alias and auto-assigns on
	// insert, which is the closest SQLite gets to auto-increment.
	if len(schema.PrimaryKey) == 1 {
		if col := schema.Column(schema.PrimaryKey[0]); col != nil && isIntegerType(col.Type) {
			col.AutoIncrement = true
		}
	}

	return schema, nil
}

func isIntegerType(colType string) bool {
	switch colType {
	case "INTEGER", "integer", "Integer", "INT", "int":
		return true
	}
	return false
}

// QuoteTableName quotes a table name with double quotes.
func (s *SQLiteDialect) QuoteTableName(name string) string {
	return quoteIdentifier(name, `"`, `"`)
}

// QuoteColumnName quotes a possibly qualified column name with double quotes.
func (s *SQLiteDialect) QuoteColumnName(name string) string {
	return quoteIdentifier(name, `"`, `"`)
}

// QuoteSQL quotes every [[identifier]] placeholder in a SQL fragment.
func (s *SQLiteDialect) QuoteSQL(fragment string) string {
	return quoteFragment(fragment, `"`, `"`)
}

// Placeholder returns the SQLite parameter placeholder.
func (s *SQLiteDialect) Placeholder(n int) string {
	return "?"
}

// InsertReturningKeys inserts values and reports the primary-key column
// values actually stored. A value the caller supplied wins; a missing value
// for the rowid-alias column is read back via last_insert_rowid. For a
// keyless table ok is derived from the affected-row count.
func (s *SQLiteDialect) InsertReturningKeys(ctx context.Context, tableName string, values map[string]interface{}) (map[string]interface{}, bool, error) {
	if s.closed {
		return nil, false, fmt.Errorf("database is closed")
	}

	schema, err := s.schemas.GetTableSchema(ctx, tableName)
	if err != nil {
		return nil, false, err
	}

	var stmt string
	var args []interface{}
	if len(values) == 0 {
		stmt = "INSERT INTO " + s.QuoteTableName(tableName) + " DEFAULT VALUES"
	} else {
		stmt, args = buildInsert(s, tableName, values)
	}
	log.Printf("[SQLITE] Executing insert: %s with args: %v", stmt, args)

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute insert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, false, nil
	}

	if len(schema.PrimaryKey) == 0 {
		return map[string]interface{}{}, true, nil
	}

	keys := make(map[string]interface{}, len(schema.PrimaryKey))
	for _, name := range schema.PrimaryKey {
		if value, ok := values[name]; ok {
			keys[name] = value
			continue
		}
		col := schema.Column(name)
		if col == nil || !col.AutoIncrement {
			log.Printf("[SQLITE] Insert into %s: primary key column %s could not be determined", tableName, name)
			return nil, false, nil
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("failed to read last insert id: %w", err)
		}
		keys[name] = id
	}
	return keys, true, nil
}

// Close closes the database connection.
func (s *SQLiteDialect) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
