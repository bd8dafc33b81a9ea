package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Native(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  any
	}{
		{"int8", Int8(-1), int8(-1)},
		{"int64", Int64(math.MaxInt64), int64(math.MaxInt64)},
		{"uint64", Uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"float16 widened", Float16(0.5), float32(0.5)},
		{"float64", Float64(2.25), 2.25},
		{"text", Text("x"), "x"},
		{"bool", Bool(true), true},
		{"date32", Date32(19000), int32(19000)},
		{"time32", Time32{Value: 3600, Unit: UnitSecond}, "3600_s"},
		{"time64 micro", Time64{Value: 12, Unit: UnitMicrosecond}, "12_µs"},
		{"null", Null{}, nil},
		{"fallback", Fallback{}, FallbackText},
		{"uint128", Uint128{Hi: 1, Lo: 0}, "18446744073709551616"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Native())
		})
	}

	assert.Nil(t, NativeOf(nil))
}

func TestValueKind_String(t *testing.T) {
	assert.Equal(t, "int32", Int32(1).Kind().String())
	assert.Equal(t, "time64", Time64{}.Kind().String())
	assert.Equal(t, "fallback", Fallback{}.Kind().String())
	assert.Equal(t, "unknown", ValueKind(-1).String())
}

func TestRow_GetAndMap(t *testing.T) {
	row := Row{
		Columns: []string{"a", "b"},
		Values:  []Value{Int32(1), nil},
	}

	assert.Equal(t, 2, row.Len())

	v, ok := row.Get("a")
	assert.True(t, ok)
	assert.Equal(t, Int32(1), v)

	v, ok = row.Get("b")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = row.Get("c")
	assert.False(t, ok)

	assert.Equal(t, map[string]Value{"a": Int32(1), "b": nil}, row.Map())
	assert.Equal(t, map[string]any{"a": int32(1), "b": nil}, row.NativeMap())
}

func TestRow_MarshalJSONKeepsSchemaOrder(t *testing.T) {
	row := Row{
		Columns: []string{"z", "a", "t"},
		Values:  []Value{Text("last"), nil, Time64{Value: 5, Unit: UnitNanosecond}},
	}

	out, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":"last","a":null,"t":"5_ns"}`, string(out))
}

func TestRow_MarshalJSONNonFiniteFloats(t *testing.T) {
	row := Row{
		Columns: []string{"nan", "pos", "neg", "f32", "f16", "ok"},
		Values: []Value{
			Float64(math.NaN()),
			Float64(math.Inf(1)),
			Float64(math.Inf(-1)),
			Float32(float32(math.NaN())),
			Float16(float32(math.Inf(1))),
			Float64(1.5),
		},
	}

	out, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"nan":"NaN","pos":"+Inf","neg":"-Inf","f32":"NaN","f16":"+Inf","ok":1.5}`, string(out))
}
