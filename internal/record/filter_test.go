package record

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/activerow/activerow/internal/core"
)

// testQuoter quotes identifiers with backticks, handling table.column
// references.
type testQuoter struct{}

func (testQuoter) QuoteTableName(name string) string {
	return quoteTest(name)
}

func (testQuoter) QuoteColumnName(name string) string {
	return quoteTest(name)
}

func (testQuoter) QuoteSQL(fragment string) string {
	return fragment
}

func (testQuoter) Placeholder(n int) string {
	return "?"
}

func quoteTest(name string) string {
	if name == "*" || strings.Contains(name, "`") {
		return name
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		return quoteTest(name[:idx]) + "." + quoteTest(name[idx+1:])
	}
	return "`" + name + "`"
}

func TestFilterAcceptsColumnKeys(t *testing.T) {
	filter := NewConditionFilter(customerSchema(), testQuoter{})

	condition := map[string]interface{}{
		"id":              1,
		"customer.name":   "Qiang",
		"`email`":         "qiang@example.com",
		"`customer`.`id`": 1,
	}

	filtered, err := filter.Filter(condition)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(filtered) != len(condition) {
		t.Fatalf("expected %d keys, got %d", len(condition), len(filtered))
	}
}

func TestFilterRejectsUnknownKeys(t *testing.T) {
	filter := NewConditionFilter(customerSchema(), testQuoter{})

	hostile := []map[string]interface{}{
		{"bogus": 1},
		{"name; DROP TABLE customer": "x"},
		{"other.name": "x"},
		{"name = 'x' OR 1=1 --": "x"},
	}
	for _, condition := range hostile {
		if _, err := filter.Filter(condition); !errors.Is(err, ErrInvalidConditionKey) {
			t.Fatalf("condition %v: expected ErrInvalidConditionKey, got %v", condition, err)
		}
	}
}

func TestFilterWithAliases(t *testing.T) {
	orderSchema := &core.Schema{
		TableName: "order",
		Columns: []core.Column{
			{Name: "id", Type: "INT"},
			{Name: "customer_id", Type: "INT"},
		},
		PrimaryKey: []string{"id"},
	}
	filter := NewConditionFilter(orderSchema, testQuoter{})

	from := []core.FromEntry{
		{Alias: "o", Table: "order"},
		{Alias: "c", Table: "customer"},
	}

	// Both the alias and the real table name qualify columns.
	condition := map[string]interface{}{
		"o.id":             1,
		"order.id":         1,
		"c.customer_id":    2,
		"`o`.`customer_id`": 2,
	}
	if _, err := filter.FilterWithFrom(condition, from); err != nil {
		t.Fatalf("FilterWithFrom failed: %v", err)
	}

	// An alias not in scope does not qualify anything.
	if _, err := filter.FilterWithFrom(map[string]interface{}{"x.id": 1}, from); !errors.Is(err, ErrInvalidConditionKey) {
		t.Fatalf("expected ErrInvalidConditionKey, got %v", err)
	}
}

func TestFilterReindexesSparseValues(t *testing.T) {
	filter := NewConditionFilter(customerSchema(), testQuoter{})

	condition := map[string]interface{}{
		"id": map[int]interface{}{9: "b", 5: "a"},
	}

	filtered, err := filter.Filter(condition)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}

	want := []interface{}{"a", "b"}
	if !reflect.DeepEqual(filtered["id"], want) {
		t.Fatalf("reindexed value = %v, want %v", filtered["id"], want)
	}

	// The input mapping is never modified.
	if _, ok := condition["id"].(map[int]interface{}); !ok {
		t.Fatal("input condition was modified")
	}
}

func TestFilterPassesSlicesAndScalars(t *testing.T) {
	filter := NewConditionFilter(customerSchema(), testQuoter{})

	condition := map[string]interface{}{
		"id":   []interface{}{1, 2, 3},
		"name": nil,
	}
	filtered, err := filter.Filter(condition)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !reflect.DeepEqual(filtered["id"], []interface{}{1, 2, 3}) {
		t.Fatalf("slice value changed: %v", filtered["id"])
	}
	if filtered["name"] != nil {
		t.Fatalf("nil value changed: %v", filtered["name"])
	}
}
