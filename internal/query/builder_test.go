package query

import (
	"context"
	"strings"
	"testing"

	"github.com/activerow/activerow/internal/core"
)

// fakeRows iterates over canned rows.
type fakeRows struct {
	columns []string
	rows    [][]interface{}
	idx     int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.rows[r.idx-1]
	for i := range dest {
		*dest[i].(*interface{}) = row[i]
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) {
	return r.columns, nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

// fakeDatabase records the last statement and serves canned rows.
type fakeDatabase struct {
	stmt    string
	args    []interface{}
	columns []string
	rows    [][]interface{}
}

func (db *fakeDatabase) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	db.stmt = query
	db.args = args
	return &fakeRows{columns: db.columns, rows: db.rows}, nil
}

func (db *fakeDatabase) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	return nil, nil
}

func (db *fakeDatabase) BeginTx(ctx context.Context) (core.Transaction, error) {
	return nil, nil
}

func (db *fakeDatabase) Close() error { return nil }

type backtickQuoter struct{}

func (backtickQuoter) QuoteTableName(name string) string  { return quoteBacktick(name) }
func (backtickQuoter) QuoteColumnName(name string) string { return quoteBacktick(name) }
func (backtickQuoter) QuoteSQL(fragment string) string    { return fragment }
func (backtickQuoter) Placeholder(n int) string           { return "?" }

func quoteBacktick(name string) string {
	if name == "*" || strings.Contains(name, "`") {
		return name
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		return quoteBacktick(name[:idx]) + "." + quoteBacktick(name[idx+1:])
	}
	return "`" + name + "`"
}

func TestBuilderOne(t *testing.T) {
	db := &fakeDatabase{
		columns: []string{"id", "name"},
		rows:    [][]interface{}{{int64(1), "Qiang"}},
	}
	q := New(db, backtickQuoter{}, "customer").Where(map[string]interface{}{
		"name": "Qiang",
		"id":   1,
	})

	row, err := q.One(context.Background())
	if err != nil {
		t.Fatalf("One failed: %v", err)
	}
	if row["name"] != "Qiang" || row["id"] != int64(1) {
		t.Fatalf("row = %v", row)
	}

	// Condition keys render in sorted order.
	want := "SELECT * FROM `customer` WHERE `id` = ? AND `name` = ? LIMIT 1"
	if db.stmt != want {
		t.Fatalf("stmt = %q, want %q", db.stmt, want)
	}
	if len(db.args) != 2 || db.args[0] != 1 || db.args[1] != "Qiang" {
		t.Fatalf("args = %v", db.args)
	}
}

func TestBuilderOneAbsent(t *testing.T) {
	db := &fakeDatabase{columns: []string{"id"}}
	row, err := New(db, backtickQuoter{}, "customer").Where(map[string]interface{}{"id": 999}).One(context.Background())
	if err != nil {
		t.Fatalf("One failed: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil row, got %v", row)
	}
}

func TestBuilderNullAndInPredicates(t *testing.T) {
	db := &fakeDatabase{columns: []string{"id"}}
	b := New(db, backtickQuoter{}, "customer")
	b.Where(map[string]interface{}{
		"email": nil,
		"id":    []interface{}{1, 2, 3},
	})
	if _, err := b.All(context.Background()); err != nil {
		t.Fatalf("All failed: %v", err)
	}

	want := "SELECT * FROM `customer` WHERE `email` IS NULL AND `id` IN (?, ?, ?)"
	if db.stmt != want {
		t.Fatalf("stmt = %q, want %q", db.stmt, want)
	}
	if len(db.args) != 3 {
		t.Fatalf("args = %v", db.args)
	}
}

func TestBuilderJoinAndAlias(t *testing.T) {
	db := &fakeDatabase{columns: []string{"id"}}
	b := New(db, backtickQuoter{}, "order").Alias("o").Join("customer", "c")

	primary := b.PrimaryTable()
	if primary.Table != "order" || primary.Alias != "o" {
		t.Fatalf("primary table = %+v", primary)
	}

	entries := b.TablesUsedInFrom()
	if len(entries) != 2 || entries[1].Alias != "c" {
		t.Fatalf("from entries = %+v", entries)
	}

	if _, err := b.Where(map[string]interface{}{"o.id": 1}).One(context.Background()); err != nil {
		t.Fatalf("One failed: %v", err)
	}
	want := "SELECT * FROM `order` `o`, `customer` `c` WHERE `o`.`id` = ? LIMIT 1"
	if db.stmt != want {
		t.Fatalf("stmt = %q, want %q", db.stmt, want)
	}
}

func TestFactoryScopesToTable(t *testing.T) {
	db := &fakeDatabase{columns: []string{"id"}}
	factory := NewFactory(db, backtickQuoter{})

	q := factory("customer")
	if q.PrimaryTable().Table != "customer" {
		t.Fatalf("primary table = %+v", q.PrimaryTable())
	}
}
