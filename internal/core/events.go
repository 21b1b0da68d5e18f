package core

import "time"

// EventKind represents the type of record lifecycle event.
type EventKind string

const (
	// EventAfterInsert is fired after a record is successfully inserted.
	EventAfterInsert EventKind = "AFTER_INSERT"

	// EventAfterRefresh is fired after a record is reloaded from the database.
	EventAfterRefresh EventKind = "AFTER_REFRESH"
)

// RecordEvent describes one record lifecycle transition. Events are published
// after the attribute store has committed, so Attributes always reflects the
// clean, persisted state.
type RecordEvent struct {
	// Table is the name of the table the record belongs to.
	Table string

	// Kind is the lifecycle transition that occurred.
	Kind EventKind

	// PrimaryKey maps primary-key column names to their committed values.
	// Empty for keyless tables.
	PrimaryKey map[string]interface{}

	// Attributes is the committed attribute snapshot.
	Attributes map[string]interface{}

	// Timestamp is when the transition occurred.
	Timestamp time.Time
}
