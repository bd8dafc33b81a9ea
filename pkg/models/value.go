package models

import (
	"math/big"
	"strconv"
)

// Time unit labels attached to temporal values
const (
	UnitSecond      = "s"
	UnitMillisecond = "ms"
	UnitMicrosecond = "µs"
	UnitNanosecond  = "ns"
)

// FallbackText is the native rendering of a Fallback value
const FallbackText = "<unsupported type>"

// ValueKind identifies the variant of a decoded Value
type ValueKind int

const (
	KindInt8 ValueKind = iota
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindUint128
	KindFloat16
	KindFloat32
	KindFloat64
	KindText
	KindBool
	KindDate32
	KindDate64
	KindTime32
	KindTime64
	KindNull
	KindFallback
)

var kindNames = [...]string{
	KindInt8:     "int8",
	KindInt16:    "int16",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint8:    "uint8",
	KindUint16:   "uint16",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindUint128:  "uint128",
	KindFloat16:  "float16",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindText:     "text",
	KindBool:     "bool",
	KindDate32:   "date32",
	KindDate64:   "date64",
	KindTime32:   "time32",
	KindTime64:   "time64",
	KindNull:     "null",
	KindFallback: "fallback",
}

func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Value is a single decoded result cell. The set of implementations is
// closed; a nil Value means the cell is absent (null in the source column).
type Value interface {
	Kind() ValueKind
	// Native returns the plain Go value handed to consumers that do not
	// switch on the concrete variant.
	Native() any
	isValue()
}

type (
	Int8    int8
	Int16   int16
	Int32   int32
	Int64   int64
	Uint8   uint8
	Uint16  uint16
	Uint32  uint32
	Uint64  uint64
	Float16 float32 // half precision source widened to float32
	Float32 float32
	Float64 float64
	Text    string
	Bool    bool
	Date32  int32 // days since epoch
	Date64  int64 // milliseconds since epoch
)

// Uint128 is an unsigned 128-bit integer split into two halves
type Uint128 struct {
	Hi, Lo uint64
}

// Time32 is a 32-bit time of day with its unit
type Time32 struct {
	Value int32
	Unit  string
}

// Time64 is a 64-bit time of day, timestamp or duration with its unit
type Time64 struct {
	Value int64
	Unit  string
}

// Null is an explicit null cell
type Null struct{}

// Fallback marks a cell whose column encoding is not decoded by this package
type Fallback struct{}

func (Int8) Kind() ValueKind     { return KindInt8 }
func (Int16) Kind() ValueKind    { return KindInt16 }
func (Int32) Kind() ValueKind    { return KindInt32 }
func (Int64) Kind() ValueKind    { return KindInt64 }
func (Uint8) Kind() ValueKind    { return KindUint8 }
func (Uint16) Kind() ValueKind   { return KindUint16 }
func (Uint32) Kind() ValueKind   { return KindUint32 }
func (Uint64) Kind() ValueKind   { return KindUint64 }
func (Uint128) Kind() ValueKind  { return KindUint128 }
func (Float16) Kind() ValueKind  { return KindFloat16 }
func (Float32) Kind() ValueKind  { return KindFloat32 }
func (Float64) Kind() ValueKind  { return KindFloat64 }
func (Text) Kind() ValueKind     { return KindText }
func (Bool) Kind() ValueKind     { return KindBool }
func (Date32) Kind() ValueKind   { return KindDate32 }
func (Date64) Kind() ValueKind   { return KindDate64 }
func (Time32) Kind() ValueKind   { return KindTime32 }
func (Time64) Kind() ValueKind   { return KindTime64 }
func (Null) Kind() ValueKind     { return KindNull }
func (Fallback) Kind() ValueKind { return KindFallback }

func (v Int8) Native() any    { return int8(v) }
func (v Int16) Native() any   { return int16(v) }
func (v Int32) Native() any   { return int32(v) }
func (v Int64) Native() any   { return int64(v) }
func (v Uint8) Native() any   { return uint8(v) }
func (v Uint16) Native() any  { return uint16(v) }
func (v Uint32) Native() any  { return uint32(v) }
func (v Uint64) Native() any  { return uint64(v) }
func (v Float16) Native() any { return float32(v) }
func (v Float32) Native() any { return float32(v) }
func (v Float64) Native() any { return float64(v) }
func (v Text) Native() any    { return string(v) }
func (v Bool) Native() any    { return bool(v) }
func (v Date32) Native() any  { return int32(v) }
func (v Date64) Native() any  { return int64(v) }
func (Null) Native() any      { return nil }
func (Fallback) Native() any  { return FallbackText }

// Native renders the value in decimal since it does not fit any Go integer
func (v Uint128) Native() any { return v.String() }

func (v Uint128) String() string {
	n := new(big.Int).SetUint64(v.Hi)
	n.Lsh(n, 64)
	n.Or(n, new(big.Int).SetUint64(v.Lo))
	return n.String()
}

// Native renders temporal values as "<value>_<unit>"
func (v Time32) Native() any { return strconv.FormatInt(int64(v.Value), 10) + "_" + v.Unit }
func (v Time64) Native() any { return strconv.FormatInt(v.Value, 10) + "_" + v.Unit }

func (Int8) isValue()     {}
func (Int16) isValue()    {}
func (Int32) isValue()    {}
func (Int64) isValue()    {}
func (Uint8) isValue()    {}
func (Uint16) isValue()   {}
func (Uint32) isValue()   {}
func (Uint64) isValue()   {}
func (Uint128) isValue()  {}
func (Float16) isValue()  {}
func (Float32) isValue()  {}
func (Float64) isValue()  {}
func (Text) isValue()     {}
func (Bool) isValue()     {}
func (Date32) isValue()   {}
func (Date64) isValue()   {}
func (Time32) isValue()   {}
func (Time64) isValue()   {}
func (Null) isValue()     {}
func (Fallback) isValue() {}

// NativeOf returns v.Native(), or nil for an absent value
func NativeOf(v Value) any {
	if v == nil {
		return nil
	}
	return v.Native()
}
