package client

import (
	"time"

	"github.com/basekick-labs/arcclient/pkg/lineprotocol"
	"github.com/basekick-labs/arcclient/pkg/models"
)

// Point is a single measurement sample to be written. Setters return the
// point so calls can be chained:
//
//	p := client.NewPoint("cpu").
//		SetTag("host", "a").
//		SetFloatField("usage", 0.5)
type Point struct {
	values *models.PointValues
}

// NewPoint creates a point for measurement
func NewPoint(measurement string) *Point {
	p := &Point{values: models.NewPointValues()}
	return p.SetMeasurement(measurement)
}

// FromValues wraps existing point values. The point takes ownership of pv.
func FromValues(pv *models.PointValues) *Point {
	if pv == nil {
		pv = models.NewPointValues()
	}
	return &Point{values: pv}
}

// Values exposes the underlying point values
func (p *Point) Values() *models.PointValues {
	return p.values
}

// SetMeasurement renames the point. Empty names are ignored.
func (p *Point) SetMeasurement(measurement string) *Point {
	if measurement != "" {
		p.values.SetMeasurement(measurement)
	}
	return p
}

func (p *Point) SetTimestamp(ts int64) *Point {
	p.values.SetTimestamp(ts)
	return p
}

// SetTime sets the timestamp from t in the given precision
func (p *Point) SetTime(t time.Time, precision lineprotocol.Precision) *Point {
	var ts int64
	switch precision {
	case lineprotocol.Second:
		ts = t.Unix()
	case lineprotocol.Millisecond:
		ts = t.UnixMilli()
	case lineprotocol.Microsecond:
		ts = t.UnixMicro()
	default:
		ts = t.UnixNano()
	}
	return p.SetTimestamp(ts)
}

func (p *Point) SetTag(name, value string) *Point {
	p.values.SetTag(name, value)
	return p
}

func (p *Point) SetField(name string, value models.FieldValue) *Point {
	p.values.SetField(name, value)
	return p
}

func (p *Point) SetFloatField(name string, v float64) *Point {
	p.values.SetFloatField(name, v)
	return p
}

func (p *Point) SetIntegerField(name string, v int64) *Point {
	p.values.SetIntegerField(name, v)
	return p
}

func (p *Point) SetUIntegerField(name string, v uint32) *Point {
	p.values.SetUIntegerField(name, v)
	return p
}

func (p *Point) SetStringField(name string, v string) *Point {
	p.values.SetStringField(name, v)
	return p
}

func (p *Point) SetBooleanField(name string, v bool) *Point {
	p.values.SetBooleanField(name, v)
	return p
}

// ToLineProtocol encodes the point. It reports false when the point has no
// measurement or no fields.
func (p *Point) ToLineProtocol(precision lineprotocol.Precision, defaultTags map[string]string) (string, bool) {
	return lineprotocol.Encode(p.values, precision, defaultTags)
}

// String renders the point in nanosecond line protocol, or "" when it
// cannot be encoded
func (p *Point) String() string {
	line, _ := p.ToLineProtocol(lineprotocol.Nanosecond, nil)
	return line
}
