// Package convert turns Arrow columns into decoded cell values.
//
// Every declared column type maps to exactly one models.Value variant. Types
// without a mapping, and arrays whose concrete type disagrees with the
// declared type, decode every non-null row to models.Fallback. Conversion
// never fails.
package convert

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/basekick-labs/arcclient/pkg/models"
)

// Column is one converted column. Values holds one entry per row; a nil
// entry is a null slot.
type Column struct {
	Name   string
	Values []models.Value
}

// Convert converts the first rows slots of col, declared as field.Type.
// Rows beyond the array length decode as null. An Arrow Null column has no
// valid slots, so every row decodes as null.
func Convert(field arrow.Field, col arrow.Array, rows int) Column {
	out := Column{Name: field.Name, Values: make([]models.Value, rows)}
	if col == nil || rows <= 0 {
		return out
	}

	declared := field.Type
	if declared == nil {
		declared = col.DataType()
	}
	if col.DataType().ID() != declared.ID() {
		fillFallback(out.Values, col)
		return out
	}

	switch dt := declared.(type) {
	case *arrow.NullType:
		// every slot is null
		return out
	case *arrow.BooleanType:
		fill(out.Values, col, func(a *array.Boolean, i int) models.Value { return models.Bool(a.Value(i)) })
	case *arrow.Int8Type:
		fill(out.Values, col, func(a *array.Int8, i int) models.Value { return models.Int8(a.Value(i)) })
	case *arrow.Int16Type:
		fill(out.Values, col, func(a *array.Int16, i int) models.Value { return models.Int16(a.Value(i)) })
	case *arrow.Int32Type:
		fill(out.Values, col, func(a *array.Int32, i int) models.Value { return models.Int32(a.Value(i)) })
	case *arrow.Int64Type:
		fill(out.Values, col, func(a *array.Int64, i int) models.Value { return models.Int64(a.Value(i)) })
	case *arrow.Uint8Type:
		fill(out.Values, col, func(a *array.Uint8, i int) models.Value { return models.Uint8(a.Value(i)) })
	case *arrow.Uint16Type:
		fill(out.Values, col, func(a *array.Uint16, i int) models.Value { return models.Uint16(a.Value(i)) })
	case *arrow.Uint32Type:
		fill(out.Values, col, func(a *array.Uint32, i int) models.Value { return models.Uint32(a.Value(i)) })
	case *arrow.Uint64Type:
		fill(out.Values, col, func(a *array.Uint64, i int) models.Value { return models.Uint64(a.Value(i)) })
	case *arrow.Float16Type:
		fill(out.Values, col, func(a *array.Float16, i int) models.Value { return models.Float16(a.Value(i).Float32()) })
	case *arrow.Float32Type:
		fill(out.Values, col, func(a *array.Float32, i int) models.Value { return models.Float32(a.Value(i)) })
	case *arrow.Float64Type:
		fill(out.Values, col, func(a *array.Float64, i int) models.Value { return models.Float64(a.Value(i)) })
	case *arrow.StringType:
		fill(out.Values, col, func(a *array.String, i int) models.Value { return models.Text(a.Value(i)) })
	case *arrow.LargeStringType:
		fill(out.Values, col, func(a *array.LargeString, i int) models.Value { return models.Text(a.Value(i)) })
	case *arrow.StringViewType:
		fill(out.Values, col, func(a *array.StringView, i int) models.Value { return models.Text(a.Value(i)) })
	case *arrow.Date32Type:
		fill(out.Values, col, func(a *array.Date32, i int) models.Value { return models.Date32(a.Value(i)) })
	case *arrow.Date64Type:
		fill(out.Values, col, func(a *array.Date64, i int) models.Value { return models.Date64(a.Value(i)) })
	case *arrow.TimestampType:
		unit := UnitString(dt.Unit)
		fill(out.Values, col, func(a *array.Timestamp, i int) models.Value {
			return models.Time64{Value: int64(a.Value(i)), Unit: unit}
		})
	case *arrow.DurationType:
		unit := UnitString(dt.Unit)
		fill(out.Values, col, func(a *array.Duration, i int) models.Value {
			return models.Time64{Value: int64(a.Value(i)), Unit: unit}
		})
	case *arrow.Time32Type:
		if dt.Unit != arrow.Second && dt.Unit != arrow.Millisecond {
			fillFallback(out.Values, col)
			break
		}
		unit := UnitString(dt.Unit)
		fill(out.Values, col, func(a *array.Time32, i int) models.Value {
			return models.Time32{Value: int32(a.Value(i)), Unit: unit}
		})
	case *arrow.Time64Type:
		if dt.Unit != arrow.Microsecond && dt.Unit != arrow.Nanosecond {
			fillFallback(out.Values, col)
			break
		}
		unit := UnitString(dt.Unit)
		fill(out.Values, col, func(a *array.Time64, i int) models.Value {
			return models.Time64{Value: int64(a.Value(i)), Unit: unit}
		})
	default:
		fillFallback(out.Values, col)
	}

	return out
}

// fill converts every non-null slot with fn. An array that is not an A
// decodes to Fallback.
func fill[A arrow.Array](values []models.Value, col arrow.Array, fn func(A, int) models.Value) {
	typed, ok := col.(A)
	if !ok {
		fillFallback(values, col)
		return
	}
	n := min(len(values), col.Len())
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			continue
		}
		values[i] = fn(typed, i)
	}
}

func fillFallback(values []models.Value, col arrow.Array) {
	n := min(len(values), col.Len())
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			continue
		}
		values[i] = models.Fallback{}
	}
}

// UnitString renders an Arrow time unit as "s", "ms", "µs" or "ns"
func UnitString(u arrow.TimeUnit) string {
	switch u {
	case arrow.Second:
		return models.UnitSecond
	case arrow.Millisecond:
		return models.UnitMillisecond
	case arrow.Microsecond:
		return models.UnitMicrosecond
	default:
		return models.UnitNanosecond
	}
}

// Record converts every column of rec, in schema order
func Record(rec arrow.Record) []Column {
	rows := int(rec.NumRows())
	schema := rec.Schema()
	cols := make([]Column, rec.NumCols())
	for i := range cols {
		cols[i] = Convert(schema.Field(i), rec.Column(i), rows)
	}
	return cols
}

// Transpose turns converted columns into rows, preserving row and column order
func Transpose(cols []Column, rows int) []models.Row {
	names := make([]string, len(cols))
	for j, c := range cols {
		names[j] = c.Name
	}

	out := make([]models.Row, rows)
	for i := range out {
		values := make([]models.Value, len(cols))
		for j, c := range cols {
			if i < len(c.Values) {
				values[j] = c.Values[i]
			}
		}
		out[i] = models.Row{Columns: names, Values: values}
	}
	return out
}
