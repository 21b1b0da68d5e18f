package record

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/activerow/activerow/internal/core"
	"github.com/activerow/activerow/internal/schema"
)

var (
	// ErrNoPrimaryKey is returned when an operation requires a primary key
	// and the record's table does not declare one.
	ErrNoPrimaryKey = errors.New("table has no primary key")
)

// Notifier receives record lifecycle events. Implementations must not block;
// a notifier failure never affects the persistence outcome.
type Notifier interface {
	Notify(event core.RecordEvent)
}

// Record binds an in-memory attribute store to exactly one row of a
// relational table. It tracks which attributes changed since the record was
// loaded or last saved and drives insert and refresh operations using schema
// metadata resolved at runtime.
//
// A record is owned by a single logical thread of control; concurrent
// mutation must be serialized by the caller.
type Record struct {
	schema   *core.Schema
	executor core.Executor
	quoter   core.Quoter
	queries  core.QueryFactory
	store    *AttributeStore
	filter   *ConditionFilter
	mapper   *schema.TypeMapper
	notifier Notifier
}

// New creates an empty, unsaved record for a table schema.
func New(tableSchema *core.Schema, executor core.Executor, quoter core.Quoter, queries core.QueryFactory) *Record {
	return &Record{
		schema:   tableSchema,
		executor: executor,
		quoter:   quoter,
		queries:  queries,
		store:    NewAttributeStore(tableSchema),
		filter:   NewConditionFilter(tableSchema, quoter),
		mapper:   schema.NewTypeMapper(),
	}
}

// SetNotifier attaches a lifecycle event notifier to the record.
func (r *Record) SetNotifier(n Notifier) {
	r.notifier = n
}

// TableName returns the name of the table the record is bound to.
func (r *Record) TableName() string {
	return r.schema.TableName
}

// Schema returns the record's table schema.
func (r *Record) Schema() *core.Schema {
	return r.schema
}

// Get returns the current value of an attribute.
func (r *Record) Get(name string) (interface{}, bool) {
	return r.store.Get(name)
}

// Set assigns an attribute. The name must be a declared schema column.
func (r *Record) Set(name string, value interface{}) error {
	return r.store.Set(name, value)
}

// IsNew reports whether the record has never been persisted.
func (r *Record) IsNew() bool {
	return r.store.IsNew()
}

// Dirty returns the attributes that changed since the record was loaded or
// last saved, optionally restricted to the given names.
func (r *Record) Dirty(names ...string) map[string]interface{} {
	return r.store.Dirty(names...)
}

// Attributes returns a copy of the record's current attribute values.
func (r *Record) Attributes() map[string]interface{} {
	return r.store.Attributes()
}

// FilterCondition validates a caller-supplied condition mapping against the
// record's table. It must be applied to every untrusted condition before it
// reaches the query layer.
func (r *Record) FilterCondition(condition map[string]interface{}) (map[string]interface{}, error) {
	return r.filter.Filter(condition)
}

// FilterConditionForQuery validates a condition against the record's table
// plus the aliases in scope for the given query.
func (r *Record) FilterConditionForQuery(condition map[string]interface{}, q core.Query) (map[string]interface{}, error) {
	return r.filter.FilterWithFrom(condition, q.TablesUsedInFrom())
}

// Insert persists a new record. It writes the dirty attributes, reconciles
// database-generated primary-key values back into the store, and commits the
// snapshot. The returned bool is false when the database did not accept the
// write; the record then remains new and dirty and the call may be retried.
// Any executor fault propagates unchanged with the store left untouched.
func (r *Record) Insert(ctx context.Context) (bool, error) {
	dirty := r.store.Dirty()
	log.Printf("[RECORD] Inserting into %s (%d attributes)", r.schema.TableName, len(dirty))

	keys, ok, err := r.executor.InsertReturningKeys(ctx, r.schema.TableName, dirty)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Printf("[RECORD] Insert into %s not accepted by the database", r.schema.TableName)
		return false, nil
	}

	// Validate and typecast every returned key before touching the store, so
	// a bad key set leaves the attribute state unchanged.
	cast := make(map[string]interface{}, len(keys))
	for name, raw := range keys {
		col := r.schema.Column(name)
		if col == nil {
			return false, fmt.Errorf("%w: returned key %q is not a column of table %s", ErrUnknownAttribute, name, r.schema.TableName)
		}
		typed, err := r.mapper.TypeCast(raw, col)
		if err != nil {
			return false, fmt.Errorf("failed to typecast returned key %q: %w", name, err)
		}
		cast[name] = typed
	}

	for name, value := range cast {
		if err := r.store.Set(name, value); err != nil {
			return false, err
		}
		dirty[name] = value
	}

	r.store.Commit(dirty)
	log.Printf("[RECORD] Inserted into %s, keys: %v", r.schema.TableName, cast)
	r.notify(core.EventAfterInsert)
	return true, nil
}

// Refresh reloads the record's attributes from the database by primary key,
// discarding any in-memory changes. The returned bool is false when the
// backing row no longer exists; the prior attributes are then left untouched.
func (r *Record) Refresh(ctx context.Context) (bool, error) {
	if len(r.schema.PrimaryKey) == 0 {
		return false, fmt.Errorf("%w: cannot refresh %s", ErrNoPrimaryKey, r.schema.TableName)
	}

	q := r.queries(r.schema.TableName)

	// Qualify primary-key references with the query's resolved table name so
	// the predicate stays unambiguous if the query later gains a join. These
	// keys are engine-constructed and bypass the condition filter.
	primary := q.PrimaryTable()
	condition := make(map[string]interface{}, len(r.schema.PrimaryKey))
	for _, name := range r.schema.PrimaryKey {
		value, _ := r.store.Get(name)
		condition[primary.Alias+"."+name] = value
	}

	row, err := q.Where(condition).One(ctx)
	if err != nil {
		return false, err
	}
	if row == nil {
		log.Printf("[RECORD] Refresh of %s found no row for %v", r.schema.TableName, condition)
		return false, nil
	}

	if err := r.Populate(row); err != nil {
		return false, err
	}
	r.notify(core.EventAfterRefresh)
	return true, nil
}

// Populate rebuilds the record from a raw database row, replacing both
// attribute snapshots. Values of declared columns pass through the column
// typecast; unknown column names pass through unchanged (the schema is
// authoritative but not exhaustive at hydration time).
func (r *Record) Populate(row map[string]interface{}) error {
	hydrated := make(map[string]interface{}, len(row))
	for name, raw := range row {
		col := r.schema.Column(name)
		if col == nil {
			hydrated[name] = raw
			continue
		}
		typed, err := r.mapper.TypeCast(raw, col)
		if err != nil {
			return fmt.Errorf("failed to typecast column %q: %w", name, err)
		}
		hydrated[name] = typed
	}
	r.store.Reset(hydrated)
	return nil
}

// PrimaryKeyValues returns the current values of the primary-key attributes.
func (r *Record) PrimaryKeyValues() map[string]interface{} {
	values := make(map[string]interface{}, len(r.schema.PrimaryKey))
	for _, name := range r.schema.PrimaryKey {
		value, _ := r.store.Get(name)
		values[name] = value
	}
	return values
}

// HasOne returns a query for a single related record in another table.
// link maps related-table columns to this record's attribute names.
func (r *Record) HasOne(tableName string, link map[string]string) core.Query {
	return r.relationQuery(tableName, link)
}

// HasMany returns a query for the related records in another table.
// link maps related-table columns to this record's attribute names.
func (r *Record) HasMany(tableName string, link map[string]string) core.Query {
	return r.relationQuery(tableName, link)
}

func (r *Record) relationQuery(tableName string, link map[string]string) core.Query {
	q := r.queries(tableName)
	condition := make(map[string]interface{}, len(link))
	for related, own := range link {
		value, _ := r.store.Get(own)
		condition[tableName+"."+related] = value
	}
	return q.Where(condition)
}

func (r *Record) notify(kind core.EventKind) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(core.RecordEvent{
		Table:      r.schema.TableName,
		Kind:       kind,
		PrimaryKey: r.PrimaryKeyValues(),
		Attributes: r.store.Attributes(),
		Timestamp:  time.Now(),
	})
}
