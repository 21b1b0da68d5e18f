package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/activerow/activerow/internal/core"
)

// TypeMapper converts between raw database values and the Go types declared
// by a column's database type. It is the typecast function applied at every
// hydration and key-reconciliation boundary.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// baseType strips size and precision information from a database type,
// e.g. VARCHAR(255) -> VARCHAR. TINYINT(1) is preserved because MySQL uses
// it as a boolean.
func baseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if t == "TINYINT(1)" {
		return t
	}
	if idx := strings.Index(t, "("); idx > 0 {
		t = t[:idx]
	}
	return t
}

// TypeCast converts a raw database-returned value into the Go type declared
// by the column. NULLs pass through as nil; values of unknown database types
// pass through unchanged.
func (tm *TypeMapper) TypeCast(value interface{}, column *core.Column) (interface{}, error) {
	if value == nil || column == nil {
		return value, nil
	}

	// Unwrap sql.Null* style values first.
	if valuer, ok := value.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		value = val
	}

	switch baseType(column.Type) {
	case "INT", "INTEGER", "MEDIUMINT", "BIGINT", "SMALLINT", "TINYINT", "SERIAL", "BIGSERIAL", "INT2", "INT4", "INT8":
		return toInt64(value)
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL", "FLOAT4", "FLOAT8":
		return toFloat64(value)
	case "DECIMAL", "NUMERIC":
		// Preserved as string to avoid precision loss.
		return toString(value)
	case "VARCHAR", "CHAR", "TEXT", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "CHARACTER VARYING", "CHARACTER", "UUID", "ENUM":
		return toString(value)
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "BYTEA":
		return toBytes(value)
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME":
		return toTime(value)
	case "BOOLEAN", "BOOL", "TINYINT(1)":
		return toBool(value)
	case "JSON", "JSONB":
		return toJSON(value)
	default:
		return value, nil
	}
}

// ToDBValue converts a Go value into a driver-compatible value for the given
// column, so that typed attributes can be bound as statement parameters.
func (tm *TypeMapper) ToDBValue(value interface{}, column *core.Column) (interface{}, error) {
	if value == nil || column == nil {
		return value, nil
	}

	switch baseType(column.Type) {
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME":
		return toTime(value)
	case "JSON", "JSONB":
		// Drivers expect JSON columns as serialized strings.
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("cannot marshal %T to JSON: %w", v, err)
			}
			return string(raw), nil
		}
	default:
		return value, nil
	}
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%g", v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []byte", value)
	}
}

// timeFormats are tried in order when parsing a time from a string column.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func toTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return toTime(string(v))
	case string:
		for _, format := range timeFormats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	case int64:
		// Unix timestamp.
		return time.Unix(v, 0), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int8:
		return v != 0, nil
	case int16:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case []byte:
		return toBool(string(v))
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i != 0, nil
		}
		return false, fmt.Errorf("cannot convert string %q to bool", v)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func toJSON(value interface{}) (interface{}, error) {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		// Already decoded.
		return value, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("cannot parse JSON value: %w", err)
	}
	return decoded, nil
}
