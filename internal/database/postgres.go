package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/activerow/activerow/internal/core"
)

// PostgresDialect implements the core.Dialect contracts over a PostgreSQL
// connection: information_schema/pg_index introspection, double-quote
// identifier quoting, and key-returning inserts via INSERT ... RETURNING.
type PostgresDialect struct {
	db      *sql.DB
	schemas core.SchemaProvider
	closed  bool
}

// NewPostgresDialect opens a PostgreSQL connection pool and verifies
// connectivity.
func NewPostgresDialect(host string, port int, database, username, password, sslMode string, maxOpenConns, maxIdleConns int, connMaxLifetime, connectionTimeout time.Duration) (*PostgresDialect, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		host, port, database, username, password, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &PostgresDialect{db: db}
	d.schemas = d
	return d, nil
}

// UseSchemaProvider replaces the schema lookup used internally by the
// executor, typically with a caching decorator.
func (p *PostgresDialect) UseSchemaProvider(provider core.SchemaProvider) {
	p.schemas = provider
}

// Query executes a SELECT query and returns rows.
func (p *PostgresDialect) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if p.closed {
		return nil, fmt.Errorf("database is closed")
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (p *PostgresDialect) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if p.closed {
		return nil, fmt.Errorf("database is closed")
	}
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &sqlResult{result: result}, nil
}

// BeginTx starts a new transaction.
func (p *PostgresDialect) BeginTx(ctx context.Context) (core.Transaction, error) {
	if p.closed {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx}, nil
}

// GetTableSchema introspects a table in the public schema. Returns
// core.ErrTableNotFound when the table does not exist.
func (p *PostgresDialect) GetTableSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	if p.closed {
		return nil, fmt.Errorf("database is closed")
	}

	schema := &core.Schema{
		TableName: tableName,
		Columns:   []core.Column{},
	}

	query := `
		SELECT column_name, data_type, is_nullable, column_default,
		       (is_identity = 'YES' OR column_default LIKE 'nextval(%')
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`
	rows, err := p.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var colName, colType, isNullable string
		var colDefault sql.NullString
		var autoIncrement sql.NullBool
		if err := rows.Scan(&colName, &colType, &isNullable, &colDefault, &autoIncrement); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		column := core.Column{
			Name:          colName,
			Type:          colType,
			Nullable:      isNullable == "YES",
			AutoIncrement: autoIncrement.Valid && autoIncrement.Bool,
		}
		if colDefault.Valid {
			column.Default = colDefault.String
		}
		schema.Columns = append(schema.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, tableName)
	}

	pkQuery := `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary
		ORDER BY array_position(i.indkey, a.attnum)
	`
	pkRows, err := p.db.QueryContext(ctx, pkQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key: %w", err)
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var colName string
		if err := pkRows.Scan(&colName); err != nil {
			return nil, fmt.Errorf("failed to scan primary key column: %w", err)
		}
		schema.PrimaryKey = append(schema.PrimaryKey, colName)
	}
	if err := pkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating primary key columns: %w", err)
	}

	return schema, nil
}

// QuoteTableName quotes a table name with double quotes.
func (p *PostgresDialect) QuoteTableName(name string) string {
	return quoteIdentifier(name, `"`, `"`)
}

// QuoteColumnName quotes a possibly qualified column name with double quotes.
func (p *PostgresDialect) QuoteColumnName(name string) string {
	return quoteIdentifier(name, `"`, `"`)
}

// QuoteSQL quotes every [[identifier]] placeholder in a SQL fragment.
func (p *PostgresDialect) QuoteSQL(fragment string) string {
	return quoteFragment(fragment, `"`, `"`)
}

// Placeholder returns the PostgreSQL positional parameter placeholder.
func (p *PostgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// InsertReturningKeys inserts values and reports the primary-key column
// values actually stored, using INSERT ... RETURNING so database-generated
// keys come back in the same round trip. For a keyless table ok is derived
// from the affected-row count.
func (p *PostgresDialect) InsertReturningKeys(ctx context.Context, tableName string, values map[string]interface{}) (map[string]interface{}, bool, error) {
	if p.closed {
		return nil, false, fmt.Errorf("database is closed")
	}

	schema, err := p.schemas.GetTableSchema(ctx, tableName)
	if err != nil {
		return nil, false, err
	}

	var stmt string
	var args []interface{}
	if len(values) == 0 {
		stmt = "INSERT INTO " + p.QuoteTableName(tableName) + " DEFAULT VALUES"
	} else {
		stmt, args = buildInsert(p, tableName, values)
	}

	if len(schema.PrimaryKey) == 0 {
		log.Printf("[POSTGRES] Executing insert: %s with args: %v", stmt, args)
		result, err := p.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return nil, false, fmt.Errorf("failed to execute insert: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
		}
		return map[string]interface{}{}, affected > 0, nil
	}

	returning := make([]string, len(schema.PrimaryKey))
	for i, name := range schema.PrimaryKey {
		returning[i] = p.QuoteColumnName(name)
	}
	stmt += " RETURNING " + strings.Join(returning, ", ")
	log.Printf("[POSTGRES] Executing insert: %s with args: %v", stmt, args)

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute insert: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("failed to read returned keys: %w", err)
		}
		return nil, false, nil
	}

	scanned := make([]interface{}, len(schema.PrimaryKey))
	pointers := make([]interface{}, len(schema.PrimaryKey))
	for i := range scanned {
		pointers[i] = &scanned[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, false, fmt.Errorf("failed to scan returned keys: %w", err)
	}

	keys := make(map[string]interface{}, len(schema.PrimaryKey))
	for i, name := range schema.PrimaryKey {
		keys[name] = scanned[i]
	}
	return keys, true, nil
}

// Close closes the database connection.
func (p *PostgresDialect) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
