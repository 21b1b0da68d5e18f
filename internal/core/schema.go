package core

// Schema represents the structure of a database table as discovered at runtime.
type Schema struct {
	// TableName is the name of the table.
	TableName string

	// Columns contains all column definitions for the table, in ordinal order.
	Columns []Column

	// PrimaryKey is the ordered list of column names forming the primary key.
	// Empty for keyless tables.
	PrimaryKey []string
}

// Column represents a single column in a database table.
type Column struct {
	// Name is the column name.
	Name string

	// Type is the database type (e.g., "INT", "VARCHAR(255)", "TIMESTAMP").
	Type string

	// Nullable indicates whether the column can contain NULL values.
	Nullable bool

	// Default is the default value for the column, if any.
	Default interface{}

	// AutoIncrement indicates whether the database generates this column's
	// value on insert (auto_increment, serial, rowid alias).
	AutoIncrement bool
}

// Column returns the definition for a column by name, or nil if the schema
// does not declare it.
func (s *Schema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the declared column names in ordinal order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether the schema declares a column with the given name.
func (s *Schema) HasColumn(name string) bool {
	return s.Column(name) != nil
}
