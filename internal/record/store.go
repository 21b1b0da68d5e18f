package record

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/activerow/activerow/internal/core"
)

var (
	// ErrUnknownAttribute is returned when setting an attribute that is not a
	// declared column of the record's table.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// AttributeStore holds the attribute state of one record: the "old" snapshot
// as last persisted or loaded, and the "current" live values. Diffing the two
// yields the dirty set used to build write statements.
//
// A store is owned by a single record and is not safe for concurrent use.
type AttributeStore struct {
	schema *core.Schema

	// old is the last known-persisted state. nil means "never persisted".
	old map[string]interface{}

	// current is the live, possibly modified state.
	current map[string]interface{}
}

// NewAttributeStore creates an empty attribute store for a table schema.
// The store starts out new: no old snapshot exists until the first Commit.
func NewAttributeStore(schema *core.Schema) *AttributeStore {
	return &AttributeStore{
		schema:  schema,
		current: make(map[string]interface{}),
	}
}

// Get returns the current value of an attribute. ok is false when the
// attribute has never been set.
func (s *AttributeStore) Get(name string) (interface{}, bool) {
	value, ok := s.current[name]
	return value, ok
}

// Set stores a value into the current snapshot. The name must be a declared
// schema column; typecasting happens at the hydration boundary, not here.
func (s *AttributeStore) Set(name string, value interface{}) error {
	if !s.schema.HasColumn(name) {
		return fmt.Errorf("%w: %q is not a column of table %s", ErrUnknownAttribute, name, s.schema.TableName)
	}
	s.current[name] = value
	return nil
}

// Dirty returns the attributes whose current value differs from the old
// snapshot. Attributes present in current but absent from old are always
// dirty. With no arguments all attributes are considered; otherwise the
// result is restricted to the given names.
func (s *AttributeStore) Dirty(names ...string) map[string]interface{} {
	dirty := make(map[string]interface{})

	if len(names) == 0 {
		for name, value := range s.current {
			if !s.clean(name, value) {
				dirty[name] = value
			}
		}
		return dirty
	}

	for _, name := range names {
		value, ok := s.current[name]
		if !ok {
			continue
		}
		if !s.clean(name, value) {
			dirty[name] = value
		}
	}
	return dirty
}

// clean reports whether an attribute's current value matches the old snapshot.
func (s *AttributeStore) clean(name string, value interface{}) bool {
	if s.old == nil {
		return false
	}
	old, ok := s.old[name]
	if !ok {
		return false
	}
	return reflect.DeepEqual(old, value)
}

// Commit replaces the old snapshot with the supplied values. This is the only
// transition from dirty/new to clean and is called exclusively after a
// successful persistence operation.
func (s *AttributeStore) Commit(values map[string]interface{}) {
	committed := make(map[string]interface{}, len(values))
	for name, value := range values {
		committed[name] = value
	}
	s.old = committed
}

// Reset replaces both snapshots with the supplied values, making the store
// clean and non-new. Used when a record is rebuilt from a fetched row.
func (s *AttributeStore) Reset(values map[string]interface{}) {
	s.current = make(map[string]interface{}, len(values))
	for name, value := range values {
		s.current[name] = value
	}
	s.Commit(values)
}

// IsNew reports whether the store has never been committed.
func (s *AttributeStore) IsNew() bool {
	return s.old == nil
}

// Attributes returns a copy of the current snapshot.
func (s *AttributeStore) Attributes() map[string]interface{} {
	attrs := make(map[string]interface{}, len(s.current))
	for name, value := range s.current {
		attrs[name] = value
	}
	return attrs
}

// OldAttribute returns the last persisted value of an attribute. ok is false
// when the record is new or the attribute was never persisted.
func (s *AttributeStore) OldAttribute(name string) (interface{}, bool) {
	if s.old == nil {
		return nil, false
	}
	value, ok := s.old[name]
	return value, ok
}
