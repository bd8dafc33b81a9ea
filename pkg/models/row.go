package models

import (
	"bytes"
	"math"

	"github.com/goccy/go-json"
)

// Row is one decoded result row. Columns keeps schema order and is shared by
// every row decoded from the same batch; it must not be modified.
type Row struct {
	Columns []string
	Values  []Value
}

// Len returns the number of columns in the row
func (r Row) Len() int {
	return len(r.Columns)
}

// Get returns the value of a column. The boolean reports whether the column
// exists; the value is nil when the cell is absent.
func (r Row) Get(name string) (Value, bool) {
	for i, col := range r.Columns {
		if col == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a column name to value map
func (r Row) Map() map[string]Value {
	m := make(map[string]Value, len(r.Columns))
	for i, col := range r.Columns {
		m[col] = r.Values[i]
	}
	return m
}

// NativeMap returns the row with every value converted by NativeOf
func (r Row) NativeMap() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, col := range r.Columns {
		m[col] = NativeOf(r.Values[i])
	}
	return m
}

// MarshalJSON encodes the row as an object whose keys follow schema order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(jsonValue(NativeOf(r.Values[i])))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue renders non-finite floats as "NaN", "+Inf" and "-Inf", the way
// Arrow's JSON encoding does, since JSON has no number for them
func jsonValue(v any) any {
	var f float64
	switch n := v.(type) {
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		return v
	}
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return v
}
