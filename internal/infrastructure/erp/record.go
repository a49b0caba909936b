package erp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one normalized ERP record: a field name to value mapping as
// returned by search_read/read.
type Record map[string]any

// Ref is the normalized shape of a belongs-to reference field. The wire
// protocol returns such fields either as an [id, label] pair, as a bare
// numeric id, or as false/null when unset; all three collapse to Ref at the
// ingestion boundary so nothing deeper in the call stack branches on shape.
type Ref struct {
	ID    int64
	Label string
}

// IsZero reports whether the reference is unset
func (r Ref) IsZero() bool {
	return r.ID == 0 && r.Label == ""
}

// Ref reads a belongs-to reference field in any of its wire shapes
func (rec Record) Ref(field string) Ref {
	switch v := rec[field].(type) {
	case []any:
		ref := Ref{}
		if len(v) > 0 {
			ref.ID = toInt64(v[0])
		}
		if len(v) > 1 {
			if label, ok := v[1].(string); ok {
				ref.Label = label
			}
		}
		return ref
	case float64:
		return Ref{ID: int64(v)}
	case json.Number:
		n, _ := v.Int64()
		return Ref{ID: n}
	default:
		// false/null mean "not set"
		return Ref{}
	}
}

// Int64 reads an integer field; unset fields are 0
func (rec Record) Int64(field string) int64 {
	return toInt64(rec[field])
}

// String reads a string field; the protocol encodes empty strings as false
func (rec Record) String(field string) string {
	if s, ok := rec[field].(string); ok {
		return s
	}
	return ""
}

// Decimal reads a numeric field as a decimal; unset fields are zero
func (rec Record) Decimal(field string) decimal.Decimal {
	switch v := rec[field].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// Wire layouts used by the remote ERP for date and datetime fields
const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Time reads a date or datetime field; unset or malformed values return the
// zero time
func (rec Record) Time(field string) time.Time {
	s, ok := rec[field].(string)
	if !ok {
		return time.Time{}
	}
	if t, err := time.Parse(datetimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t
	}
	return time.Time{}
}

// Bool reads a boolean field
func (rec Record) Bool(field string) bool {
	b, ok := rec[field].(bool)
	return ok && b
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// Condition is one [field, operator, value] triple of a filter expression
type Condition struct {
	Field string
	Op    string
	Value any
}

// MarshalJSON encodes the condition in the protocol's triple form
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Field, c.Op, c.Value})
}

// Eq builds an equality condition
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: "=", Value: value}
}

// In builds a membership condition
func In[T any](field string, values []T) Condition {
	return Condition{Field: field, Op: "in", Value: values}
}

// Gte builds a greater-or-equal condition
func Gte(field string, value any) Condition {
	return Condition{Field: field, Op: ">=", Value: value}
}

// Lte builds a less-or-equal condition
func Lte(field string, value any) Condition {
	return Condition{Field: field, Op: "<=", Value: value}
}

// Gt builds a strictly-greater condition
func Gt(field string, value any) Condition {
	return Condition{Field: field, Op: ">", Value: value}
}

// Query describes one filtered, field-projected bulk read
type Query struct {
	Model  string
	Filter []Condition
	Fields []string
	Limit  int
	Order  string
}
