// Package lineprotocol encodes points into InfluxDB Line Protocol and parses
// it back.
//
// Line Protocol Format:
//
//	measurement[,tag_key=tag_value...] field_key=field_value[,field_key=field_value...] timestamp
//
// Examples:
//
//	cpu,host=server01,region=us-west usage_idle=90.5,usage_system=2.1 1609459200000000000
//	http_requests,method=GET,status=200 count=1i,ok=T 1609459200
package lineprotocol

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/basekick-labs/arcclient/pkg/models"
)

// Encode renders a point as one line of line protocol. Points without a
// measurement or without fields have nothing to emit and return false.
// When the point has no explicit timestamp the current time is used,
// rendered at the given precision.
func Encode(p *models.PointValues, precision Precision, defaultTags map[string]string) (string, bool) {
	return EncodeAt(p, precision, defaultTags, time.Now())
}

// EncodeAt is Encode with an explicit clock reading
func EncodeAt(p *models.PointValues, precision Precision, defaultTags map[string]string, now time.Time) (string, bool) {
	if p == nil {
		return "", false
	}
	measurement, ok := p.Measurement()
	if !ok {
		return "", false
	}
	fieldNames := p.FieldNames()
	if len(fieldNames) == 0 {
		return "", false
	}

	var b strings.Builder
	b.Grow(64)

	b.WriteString(MeasurementEscaper.Escape(measurement))

	// Default tags come first and never override an explicit tag. Tags
	// with an empty name or value are not valid line protocol and are dropped.
	tagNames := p.TagNames()
	if len(defaultTags) > 0 {
		for _, name := range slices.Sorted(maps.Keys(defaultTags)) {
			if name == "" || defaultTags[name] == "" {
				continue
			}
			if _, explicit := p.Tag(name); explicit {
				continue
			}
			writeTag(&b, name, defaultTags[name])
		}
	}
	for _, name := range tagNames {
		if name == "" {
			continue
		}
		value, _ := p.Tag(name)
		if value == "" {
			continue
		}
		writeTag(&b, name, value)
	}

	b.WriteByte(' ')
	for i, name := range fieldNames {
		if i > 0 {
			b.WriteByte(',')
		}
		value, _ := p.Field(name)
		b.WriteString(TagEscaper.Escape(name))
		b.WriteByte('=')
		b.WriteString(FormatFieldValue(value))
	}

	b.WriteByte(' ')
	if ts, ok := p.Timestamp(); ok {
		b.WriteString(strconv.FormatInt(ts, 10))
	} else {
		b.WriteString(precision.Timestamp(now))
	}

	return b.String(), true
}

func writeTag(b *strings.Builder, name, value string) {
	b.WriteByte(',')
	b.WriteString(TagEscaper.Escape(name))
	b.WriteByte('=')
	b.WriteString(TagEscaper.Escape(value))
}

// FormatFieldValue renders a field value with its line protocol type marker
func FormatFieldValue(v models.FieldValue) string {
	switch fv := v.(type) {
	case models.Integer:
		return strconv.FormatInt(int64(fv), 10) + "i"
	case models.UInteger:
		return strconv.FormatUint(uint64(fv), 10) + "u"
	case models.Float:
		return strconv.FormatFloat(float64(fv), 'g', -1, 64)
	case models.Boolean:
		if fv {
			return "T"
		}
		return "F"
	case models.String:
		return `"` + QuotedEscaper.Escape(string(fv)) + `"`
	default:
		return ""
	}
}

// EncodeBatch encodes every emittable point, skipping the rest. All points
// without an explicit timestamp share one clock reading.
func EncodeBatch(points []*models.PointValues, precision Precision, defaultTags map[string]string) []string {
	now := time.Now()
	lines := make([]string, 0, len(points))
	for _, p := range points {
		if line, ok := EncodeAt(p, precision, defaultTags, now); ok {
			lines = append(lines, line)
		}
	}
	return lines
}
