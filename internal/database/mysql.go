package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/activerow/activerow/internal/core"
)

// MySQLDialect implements the core.Dialect contracts over a MySQL connection:
// schema introspection through INFORMATION_SCHEMA, backtick identifier
// quoting, and key-returning inserts via LAST_INSERT_ID.
type MySQLDialect struct {
	db      *sql.DB
	schemas core.SchemaProvider
	closed  bool
}

// NewMySQLDialect opens a MySQL connection pool and verifies connectivity.
func NewMySQLDialect(host string, port int, database, username, password string, maxOpenConns, maxIdleConns int, connMaxLifetime, connectionTimeout time.Duration) (*MySQLDialect, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		username, password, host, port, database, connectionTimeout)

	db, err := sql.Open("mysql", dsn)
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

	d := &MySQLDialect{db: db}
	d.schemas = d
	return d, nil
}

// UseSchemaProvider replaces the schema lookup used internally by the
// executor, typically with a caching decorator.
func (m *MySQLDialect) UseSchemaProvider(provider core.SchemaProvider) {
	m.schemas = provider
}

// Query executes a SELECT query and returns rows.
func (m *MySQLDialect) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (m *MySQLDialect) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}
	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &sqlResult{result: result}, nil
}

// BeginTx starts a new transaction.
func (m *MySQLDialect) BeginTx(ctx context.Context) (core.Transaction, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx}, nil
}

// GetTableSchema introspects a table through INFORMATION_SCHEMA. Returns
// core.ErrTableNotFound when the table does not exist.
func (m *MySQLDialect) GetTableSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}

	schema := &core.Schema{
		TableName: tableName,
		Columns:   []core.Column{},
	}

	query := `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := m.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var colName, colType, isNullable, extra string
		var colDefault sql.NullString
		if err := rows.Scan(&colName, &colType, &isNullable, &colDefault, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		column := core.Column{
			Name:          colName,
			Type:          colType,
			Nullable:      isNullable == "YES",
			AutoIncrement: extra == "auto_increment",
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

	// Primary-key columns in key order, so composite keys stay ordered.
	pkQuery := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
	`
	pkRows, err := m.db.QueryContext(ctx, pkQuery, tableName)
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

// QuoteTableName quotes a table name with backticks.
func (m *MySQLDialect) QuoteTableName(name string) string {
	return quoteIdentifier(name, "`", "`")
}

// QuoteColumnName quotes a possibly qualified column name with backticks.
func (m *MySQLDialect) QuoteColumnName(name string) string {
	return quoteIdentifier(name, "`", "`")
}

// QuoteSQL quotes every [[identifier]] placeholder in a SQL fragment.
func (m *MySQLDialect) QuoteSQL(fragment string) string {
	return quoteFragment(fragment, "`", "`")
}

// Placeholder returns the MySQL parameter placeholder.
func (m *MySQLDialect) Placeholder(n int) string {
	return "?"
}

// InsertReturningKeys inserts values and reports the primary-key column
// values actually stored. A value the caller supplied wins; a missing value
// for the auto-increment column is read back via LAST_INSERT_ID. For a
// keyless table ok is derived from the affected-row count.
func (m *MySQLDialect) InsertReturningKeys(ctx context.Context, tableName string, values map[string]interface{}) (map[string]interface{}, bool, error) {
	if m.closed {
		return nil, false, fmt.Errorf("database is closed")
	}

	schema, err := m.schemas.GetTableSchema(ctx, tableName)
	if err != nil {
		return nil, false, err
	}

	var stmt string
	var args []interface{}
	if len(values) == 0 {
		stmt = "INSERT INTO " + m.QuoteTableName(tableName) + " () VALUES ()"
	} else {
		stmt, args = buildInsert(m, tableName, values)
	}
	log.Printf("[MYSQL] Executing insert: %s with args: %v", stmt, args)

	result, err := m.db.ExecContext(ctx, stmt, args...)
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
			// A key column with neither a supplied nor a generated value
			// means the stored key cannot be determined.
			log.Printf("[MYSQL] Insert into %s: primary key column %s could not be determined", tableName, name)
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
func (m *MySQLDialect) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
