package convert

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basekick-labs/arcclient/pkg/models"
)

func buildColumn(t *testing.T, dt arrow.DataType, appendFn func(b array.Builder)) arrow.Array {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })

	b := array.NewBuilder(mem, dt)
	defer b.Release()
	appendFn(b)
	arr := b.NewArray()
	t.Cleanup(arr.Release)
	return arr
}

func TestColumn_Dispatch(t *testing.T) {
	tests := []struct {
		name  string
		dt    arrow.DataType
		build func(b array.Builder)
		want  models.Value
	}{
		{"bool", arrow.FixedWidthTypes.Boolean, func(b array.Builder) { b.(*array.BooleanBuilder).Append(true) }, models.Bool(true)},
		{"int8", arrow.PrimitiveTypes.Int8, func(b array.Builder) { b.(*array.Int8Builder).Append(-8) }, models.Int8(-8)},
		{"int16", arrow.PrimitiveTypes.Int16, func(b array.Builder) { b.(*array.Int16Builder).Append(-16) }, models.Int16(-16)},
		{"int32", arrow.PrimitiveTypes.Int32, func(b array.Builder) { b.(*array.Int32Builder).Append(-32) }, models.Int32(-32)},
		{"int64", arrow.PrimitiveTypes.Int64, func(b array.Builder) { b.(*array.Int64Builder).Append(-64) }, models.Int64(-64)},
		{"uint8", arrow.PrimitiveTypes.Uint8, func(b array.Builder) { b.(*array.Uint8Builder).Append(8) }, models.Uint8(8)},
		{"uint16", arrow.PrimitiveTypes.Uint16, func(b array.Builder) { b.(*array.Uint16Builder).Append(16) }, models.Uint16(16)},
		{"uint32", arrow.PrimitiveTypes.Uint32, func(b array.Builder) { b.(*array.Uint32Builder).Append(32) }, models.Uint32(32)},
		{"uint64", arrow.PrimitiveTypes.Uint64, func(b array.Builder) { b.(*array.Uint64Builder).Append(64) }, models.Uint64(64)},
		{"float16", arrow.FixedWidthTypes.Float16, func(b array.Builder) { b.(*array.Float16Builder).Append(float16.New(1.5)) }, models.Float16(1.5)},
		{"float32", arrow.PrimitiveTypes.Float32, func(b array.Builder) { b.(*array.Float32Builder).Append(2.5) }, models.Float32(2.5)},
		{"float64", arrow.PrimitiveTypes.Float64, func(b array.Builder) { b.(*array.Float64Builder).Append(3.5) }, models.Float64(3.5)},
		{"utf8", arrow.BinaryTypes.String, func(b array.Builder) { b.(*array.StringBuilder).Append("x") }, models.Text("x")},
		{"large utf8", arrow.BinaryTypes.LargeString, func(b array.Builder) { b.(*array.LargeStringBuilder).Append("y") }, models.Text("y")},
		{"date32", arrow.FixedWidthTypes.Date32, func(b array.Builder) { b.(*array.Date32Builder).Append(19000) }, models.Date32(19000)},
		{"date64", arrow.FixedWidthTypes.Date64, func(b array.Builder) { b.(*array.Date64Builder).Append(86400000) }, models.Date64(86400000)},
		{
			"timestamp us",
			arrow.FixedWidthTypes.Timestamp_us,
			func(b array.Builder) { b.(*array.TimestampBuilder).Append(1234) },
			models.Time64{Value: 1234, Unit: models.UnitMicrosecond},
		},
		{
			"timestamp s",
			arrow.FixedWidthTypes.Timestamp_s,
			func(b array.Builder) { b.(*array.TimestampBuilder).Append(7) },
			models.Time64{Value: 7, Unit: models.UnitSecond},
		},
		{
			"duration ms",
			arrow.FixedWidthTypes.Duration_ms,
			func(b array.Builder) { b.(*array.DurationBuilder).Append(500) },
			models.Time64{Value: 500, Unit: models.UnitMillisecond},
		},
		{
			"time32 s",
			arrow.FixedWidthTypes.Time32s,
			func(b array.Builder) { b.(*array.Time32Builder).Append(3600) },
			models.Time32{Value: 3600, Unit: models.UnitSecond},
		},
		{
			"time32 ms",
			arrow.FixedWidthTypes.Time32ms,
			func(b array.Builder) { b.(*array.Time32Builder).Append(1000) },
			models.Time32{Value: 1000, Unit: models.UnitMillisecond},
		},
		{
			"time64 ns",
			arrow.FixedWidthTypes.Time64ns,
			func(b array.Builder) { b.(*array.Time64Builder).Append(99) },
			models.Time64{Value: 99, Unit: models.UnitNanosecond},
		},
		{
			"binary falls back",
			arrow.BinaryTypes.Binary,
			func(b array.Builder) { b.(*array.BinaryBuilder).Append([]byte{1, 2}) },
			models.Fallback{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr := buildColumn(t, tt.dt, func(b array.Builder) {
				tt.build(b)
				b.AppendNull()
			})

			col := Convert(arrow.Field{Name: "c", Type: tt.dt, Nullable: true}, arr, 2)
			assert.Equal(t, "c", col.Name)
			require.Len(t, col.Values, 2)
			assert.Equal(t, tt.want, col.Values[0])
			assert.Nil(t, col.Values[1], "null slot must decode to nil")
		})
	}
}

func TestColumn_NullType(t *testing.T) {
	arr := array.NewNull(3)
	defer arr.Release()

	col := Convert(arrow.Field{Name: "n", Type: arrow.Null, Nullable: true}, arr, 3)
	assert.Equal(t, []models.Value{nil, nil, nil}, col.Values)
}

func TestColumn_DeclaredTypeMismatchFallsBack(t *testing.T) {
	arr := buildColumn(t, arrow.PrimitiveTypes.Int64, func(b array.Builder) {
		b.(*array.Int64Builder).AppendValues([]int64{1, 2}, []bool{true, false})
	})

	col := Convert(arrow.Field{Name: "x", Type: arrow.BinaryTypes.String}, arr, 2)
	assert.Equal(t, []models.Value{models.Fallback{}, nil}, col.Values)
}

func TestColumn_RowsBeyondArrayAreNull(t *testing.T) {
	arr := buildColumn(t, arrow.PrimitiveTypes.Int32, func(b array.Builder) {
		b.(*array.Int32Builder).Append(5)
	})

	col := Convert(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int32}, arr, 3)
	assert.Equal(t, []models.Value{models.Int32(5), nil, nil}, col.Values)
}

func TestRecordAndTranspose(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()
	rb.Field(0).(*array.Int32Builder).AppendValues([]int32{1, 0, 3}, []bool{true, false, true})
	rb.Field(1).(*array.StringBuilder).AppendValues([]string{"x", "y", ""}, []bool{true, true, false})
	rec := rb.NewRecord()
	defer rec.Release()

	rows := Transpose(Record(rec), int(rec.NumRows()))
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"a", "b"}, rows[0].Columns)
	assert.Equal(t, []models.Value{models.Int32(1), models.Text("x")}, rows[0].Values)
	assert.Equal(t, []models.Value{nil, models.Text("y")}, rows[1].Values)
	assert.Equal(t, []models.Value{models.Int32(3), nil}, rows[2].Values)
}

func TestUnitString(t *testing.T) {
	assert.Equal(t, "s", UnitString(arrow.Second))
	assert.Equal(t, "ms", UnitString(arrow.Millisecond))
	assert.Equal(t, "µs", UnitString(arrow.Microsecond))
	assert.Equal(t, "ns", UnitString(arrow.Nanosecond))
}
