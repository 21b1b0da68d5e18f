package database

import (
	"fmt"
	"reflect"
	"testing"
)

// staticQuoter quotes with fixed characters and numbered placeholders.
type staticQuoter struct {
	open, close string
	numbered    bool
}

func (q staticQuoter) QuoteTableName(name string) string {
	return quoteIdentifier(name, q.open, q.close)
}

func (q staticQuoter) QuoteColumnName(name string) string {
	return quoteIdentifier(name, q.open, q.close)
}

func (q staticQuoter) QuoteSQL(fragment string) string {
	return quoteFragment(fragment, q.open, q.close)
}

func (q staticQuoter) Placeholder(n int) string {
	if q.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func TestBuildInsertDeterministic(t *testing.T) {
	quoter := staticQuoter{open: "`", close: "`"}
	values := map[string]interface{}{
		"name":  "Qiang",
		"email": "qiang@example.com",
		"age":   30,
	}

	stmt, args := buildInsert(quoter, "customer", values)

	want := "INSERT INTO `customer` (`age`, `email`, `name`) VALUES (?, ?, ?)"
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if !reflect.DeepEqual(args, []interface{}{30, "qiang@example.com", "Qiang"}) {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildInsertNumberedPlaceholders(t *testing.T) {
	quoter := staticQuoter{open: `"`, close: `"`, numbered: true}
	stmt, _ := buildInsert(quoter, "customer", map[string]interface{}{"a": 1, "b": 2})

	want := `INSERT INTO "customer" ("a", "b") VALUES ($1, $2)`
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"customer", "`customer`"},
		{"customer.id", "`customer`.`id`"},
		{"*", "*"},
		{"`already`", "`already`"},
		{"t.`id`", "t.`id`"},
	}
	for _, tc := range cases {
		if got := quoteIdentifier(tc.in, "`", "`"); got != tc.want {
			t.Fatalf("quoteIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQuoteFragment(t *testing.T) {
	got := quoteFragment("SELECT [[id]], [[t.name]] FROM [[t]]", "`", "`")
	want := "SELECT `id`, `t`.`name` FROM `t`"
	if got != want {
		t.Fatalf("quoteFragment = %q, want %q", got, want)
	}

	// Unterminated placeholders pass through unchanged.
	got = quoteFragment("SELECT [[id FROM t", "`", "`")
	if got != "SELECT [[id FROM t" {
		t.Fatalf("quoteFragment = %q", got)
	}
}
