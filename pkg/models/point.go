package models

import (
	"maps"
	"slices"
)

// FieldType identifies the variant stored in a FieldValue
type FieldType int

const (
	FieldTypeFloat FieldType = iota
	FieldTypeInteger
	FieldTypeUInteger
	FieldTypeString
	FieldTypeBoolean
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeFloat:
		return "float"
	case FieldTypeInteger:
		return "integer"
	case FieldTypeUInteger:
		return "uinteger"
	case FieldTypeString:
		return "string"
	case FieldTypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// FieldValue is a typed point field value. The set of implementations is
// closed: Float, Integer, UInteger, String and Boolean.
type FieldValue interface {
	Type() FieldType
	isFieldValue()
}

type (
	Float    float64
	Integer  int64
	UInteger uint32
	String   string
	Boolean  bool
)

func (Float) Type() FieldType    { return FieldTypeFloat }
func (Integer) Type() FieldType  { return FieldTypeInteger }
func (UInteger) Type() FieldType { return FieldTypeUInteger }
func (String) Type() FieldType   { return FieldTypeString }
func (Boolean) Type() FieldType  { return FieldTypeBoolean }

func (Float) isFieldValue()    {}
func (Integer) isFieldValue()  {}
func (UInteger) isFieldValue() {}
func (String) isFieldValue()   {}
func (Boolean) isFieldValue()  {}

// PointValues holds the measurement, tags, fields and optional timestamp of
// a single point. It is the input of the line protocol encoder.
type PointValues struct {
	measurement    string
	hasMeasurement bool
	timestamp      int64
	hasTimestamp   bool
	tags           map[string]string
	fields         map[string]FieldValue
}

// NewPointValues creates empty point values with no measurement set
func NewPointValues() *PointValues {
	return &PointValues{
		tags:   make(map[string]string),
		fields: make(map[string]FieldValue),
	}
}

// NewPointValuesWithMeasurement creates empty point values for a measurement
func NewPointValuesWithMeasurement(measurement string) *PointValues {
	pv := NewPointValues()
	pv.SetMeasurement(measurement)
	return pv
}

// Measurement returns the measurement name and whether it is set
func (pv *PointValues) Measurement() (string, bool) {
	return pv.measurement, pv.hasMeasurement
}

func (pv *PointValues) SetMeasurement(measurement string) {
	pv.measurement = measurement
	pv.hasMeasurement = true
}

// Timestamp returns the explicit timestamp and whether one was set
func (pv *PointValues) Timestamp() (int64, bool) {
	return pv.timestamp, pv.hasTimestamp
}

func (pv *PointValues) SetTimestamp(ts int64) {
	pv.timestamp = ts
	pv.hasTimestamp = true
}

// ClearTimestamp removes the explicit timestamp so the encoder uses the clock
func (pv *PointValues) ClearTimestamp() {
	pv.timestamp = 0
	pv.hasTimestamp = false
}

// Tag returns the value of a tag and whether it exists
func (pv *PointValues) Tag(name string) (string, bool) {
	v, ok := pv.tags[name]
	return v, ok
}

func (pv *PointValues) SetTag(name, value string) {
	if pv.tags == nil {
		pv.tags = make(map[string]string)
	}
	pv.tags[name] = value
}

func (pv *PointValues) RemoveTag(name string) {
	delete(pv.tags, name)
}

// TagNames returns tag names in ascending order
func (pv *PointValues) TagNames() []string {
	return slices.Sorted(maps.Keys(pv.tags))
}

// Field returns the raw field value and whether it exists
func (pv *PointValues) Field(name string) (FieldValue, bool) {
	v, ok := pv.fields[name]
	return v, ok
}

// FieldType returns the type of the named field and whether it exists
func (pv *PointValues) FieldType(name string) (FieldType, bool) {
	v, ok := pv.fields[name]
	if !ok {
		return 0, false
	}
	return v.Type(), true
}

// SetField stores a field value. An existing field of any type is replaced.
func (pv *PointValues) SetField(name string, value FieldValue) {
	if pv.fields == nil {
		pv.fields = make(map[string]FieldValue)
	}
	pv.fields[name] = value
}

// SetFieldAs stores a field value only if it has the expected type.
func (pv *PointValues) SetFieldAs(name string, value FieldValue, expected FieldType) error {
	if value.Type() != expected {
		return &TypeMismatchError{Field: name, Expected: expected, Actual: value.Type()}
	}
	pv.SetField(name, value)
	return nil
}

// SetFields stores every value of the map
func (pv *PointValues) SetFields(values map[string]FieldValue) {
	for name, value := range values {
		pv.SetField(name, value)
	}
}

func (pv *PointValues) SetFloatField(name string, v float64)   { pv.SetField(name, Float(v)) }
func (pv *PointValues) SetIntegerField(name string, v int64)   { pv.SetField(name, Integer(v)) }
func (pv *PointValues) SetUIntegerField(name string, v uint32) { pv.SetField(name, UInteger(v)) }
func (pv *PointValues) SetStringField(name string, v string)   { pv.SetField(name, String(v)) }
func (pv *PointValues) SetBooleanField(name string, v bool)    { pv.SetField(name, Boolean(v)) }

// FloatField returns a float field. A missing field is reported with
// found=false and no error; a field of another type returns a
// *TypeMismatchError.
func (pv *PointValues) FloatField(name string) (float64, bool, error) {
	v, ok, err := typedField[Float](pv, name, FieldTypeFloat)
	return float64(v), ok, err
}

func (pv *PointValues) IntegerField(name string) (int64, bool, error) {
	v, ok, err := typedField[Integer](pv, name, FieldTypeInteger)
	return int64(v), ok, err
}

func (pv *PointValues) UIntegerField(name string) (uint32, bool, error) {
	v, ok, err := typedField[UInteger](pv, name, FieldTypeUInteger)
	return uint32(v), ok, err
}

func (pv *PointValues) StringField(name string) (string, bool, error) {
	v, ok, err := typedField[String](pv, name, FieldTypeString)
	return string(v), ok, err
}

func (pv *PointValues) BooleanField(name string) (bool, bool, error) {
	v, ok, err := typedField[Boolean](pv, name, FieldTypeBoolean)
	return bool(v), ok, err
}

func typedField[V FieldValue](pv *PointValues, name string, expected FieldType) (V, bool, error) {
	var zero V
	raw, ok := pv.fields[name]
	if !ok {
		return zero, false, nil
	}
	v, ok := raw.(V)
	if !ok {
		return zero, true, &TypeMismatchError{Field: name, Expected: expected, Actual: raw.Type()}
	}
	return v, true, nil
}

// RemoveField deletes a field, returning ErrFieldNotFound if it does not exist
func (pv *PointValues) RemoveField(name string) error {
	if _, ok := pv.fields[name]; !ok {
		return &FieldNotFoundError{Field: name}
	}
	delete(pv.fields, name)
	return nil
}

// FieldNames returns field names in ascending order
func (pv *PointValues) FieldNames() []string {
	return slices.Sorted(maps.Keys(pv.fields))
}

func (pv *PointValues) HasFields() bool {
	return len(pv.fields) > 0
}

// Clone returns a deep copy
func (pv *PointValues) Clone() *PointValues {
	c := *pv
	c.tags = maps.Clone(pv.tags)
	c.fields = maps.Clone(pv.fields)
	return &c
}
