package record

import (
	"errors"
	"fmt"
	"sort"

	"github.com/activerow/activerow/internal/core"
)

var (
	// ErrInvalidConditionKey is returned when a caller-supplied condition key
	// does not resolve to a column of the record's table or its aliases.
	ErrInvalidConditionKey = errors.New("invalid condition key")
)

// ConditionFilter validates caller-supplied condition mappings before they
// may become WHERE predicates. Every key must name a real column of the
// record's table, optionally qualified by the table name or a query alias,
// in bare or quoted form. This is the principal defense against column-name
// injection from untrusted input such as request parameters.
type ConditionFilter struct {
	schema *core.Schema
	quoter core.Quoter
}

// NewConditionFilter creates a condition filter for a table schema.
func NewConditionFilter(schema *core.Schema, quoter core.Quoter) *ConditionFilter {
	return &ConditionFilter{
		schema: schema,
		quoter: quoter,
	}
}

// Filter validates a condition against the record's own table only.
func (f *ConditionFilter) Filter(condition map[string]interface{}) (map[string]interface{}, error) {
	return f.FilterWithFrom(condition, nil)
}

// FilterWithFrom validates a condition against the record's table plus every
// alias in the originating query's FROM entries. The returned mapping is a
// copy of the input with sparse array values reindexed into dense sequences;
// the input is never modified.
func (f *ConditionFilter) FilterWithFrom(condition map[string]interface{}, from []core.FromEntry) (map[string]interface{}, error) {
	valid := f.acceptableKeys(from)

	filtered := make(map[string]interface{}, len(condition))
	for key, value := range condition {
		if _, ok := valid[key]; !ok {
			return nil, fmt.Errorf("%w: key %q is not a column name and cannot be used as a filter", ErrInvalidConditionKey, key)
		}
		filtered[key] = reindexValue(value)
	}
	return filtered, nil
}

// acceptableKeys builds the universe of valid condition keys: the cross
// product of {bare, quoted} x {column, prefix.column} for the record's table
// and for every alias in scope.
func (f *ConditionFilter) acceptableKeys(from []core.FromEntry) map[string]struct{} {
	prefixes := []string{f.schema.TableName}
	for _, entry := range from {
		if entry.IsAlias() {
			prefixes = append(prefixes, entry.Alias)
		}
	}

	valid := make(map[string]struct{})
	for _, name := range f.schema.ColumnNames() {
		valid[name] = struct{}{}
		valid[f.quoter.QuoteColumnName(name)] = struct{}{}
		for _, prefix := range prefixes {
			qualified := prefix + "." + name
			valid[qualified] = struct{}{}
			valid[f.quoter.QuoteColumnName(qualified)] = struct{}{}
		}
	}
	return valid
}

// reindexValue normalizes sparse array values (map with integer keys) into
// dense, key-ordered sequences as required by IN-clause builders. Slices and
// scalars pass through unchanged.
func reindexValue(value interface{}) interface{} {
	sparse, ok := value.(map[int]interface{})
	if !ok {
		return value
	}

	indexes := make([]int, 0, len(sparse))
	for idx := range sparse {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	dense := make([]interface{}, 0, len(sparse))
	for _, idx := range indexes {
		dense = append(dense, sparse[idx])
	}
	return dense
}
