package lineprotocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/basekick-labs/arcclient/pkg/models"
)

// ErrInvalidLine is wrapped by every parse error
var ErrInvalidLine = errors.New("invalid line protocol")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidLine, fmt.Sprintf(format, args...))
}

// ParseLine parses one line of line protocol into a point. Blank lines and
// comments yield a nil point and a nil error. The timestamp is kept as the
// raw integer; interpreting its unit is up to the caller.
func ParseLine(line []byte) (*models.PointValues, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return nil, nil
	}

	// measurement[,tags] ends at the first unescaped space
	end := indexUnescaped(line, ' ')
	if end < 0 {
		return nil, invalid("missing field set")
	}
	head, rest := line[:end], bytes.TrimLeft(line[end+1:], " ")

	pv := models.NewPointValues()
	if err := parseMeasurementTags(head, pv); err != nil {
		return nil, err
	}

	fieldParts := splitOnDelimiter(rest, ' ', true)
	if len(fieldParts) == 0 {
		return nil, invalid("missing field set")
	}
	if len(fieldParts) > 2 {
		return nil, invalid("unexpected content after timestamp")
	}
	if err := parseFields(fieldParts[0], pv); err != nil {
		return nil, err
	}

	if len(fieldParts) == 2 {
		ts, err := strconv.ParseInt(string(fieldParts[1]), 10, 64)
		if err != nil {
			return nil, invalid("bad timestamp %q", fieldParts[1])
		}
		pv.SetTimestamp(ts)
	}

	return pv, nil
}

// ParseBatch parses newline separated line protocol. Invalid lines are
// skipped and reported together in the returned error, tagged with their
// 1-based line number.
func ParseBatch(data []byte) ([]*models.PointValues, error) {
	lines := bytes.Split(data, []byte{'\n'})
	points := make([]*models.PointValues, 0, len(lines))

	var errs []error
	for i, line := range lines {
		pv, err := ParseLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		if pv != nil {
			points = append(points, pv)
		}
	}

	return points, errors.Join(errs...)
}

// indexUnescaped returns the index of the first c not preceded by a backslash
func indexUnescaped(data []byte, c byte) int {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case c:
			return i
		}
	}
	return -1
}

// splitOnDelimiter splits data on unescaped delimiters. With quoteAware set,
// a double quote directly after '=' opens a string value and delimiters
// inside it are kept.
func splitOnDelimiter(data []byte, delim byte, quoteAware bool) [][]byte {
	var parts [][]byte
	start := 0
	inQuotes := false

	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == '\\':
			i++
		case quoteAware && c == '"' && (inQuotes || (i > 0 && data[i-1] == '=')):
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			if i > start {
				parts = append(parts, data[start:i])
			}
			start = i + 1
		}
	}

	if start < len(data) {
		parts = append(parts, data[start:])
	}
	return parts
}

// parseMeasurementTags parses measurement[,tag=value...]
func parseMeasurementTags(part []byte, pv *models.PointValues) error {
	components := splitOnDelimiter(part, ',', false)
	if len(components) == 0 || part[0] == ',' {
		return invalid("missing measurement")
	}

	pv.SetMeasurement(MeasurementEscaper.Unescape(string(components[0])))

	for _, component := range components[1:] {
		idx := indexUnescaped(component, '=')
		if idx <= 0 {
			return invalid("bad tag %q", component)
		}
		if idx == len(component)-1 {
			return invalid("empty tag value %q", component)
		}
		key := TagEscaper.Unescape(string(component[:idx]))
		value := TagEscaper.Unescape(string(component[idx+1:]))
		pv.SetTag(key, value)
	}
	return nil
}

// parseFields parses field_key=field_value[,field_key=field_value...]
func parseFields(part []byte, pv *models.PointValues) error {
	for _, fieldPart := range splitOnDelimiter(part, ',', true) {
		idx := indexUnescaped(fieldPart, '=')
		if idx <= 0 {
			return invalid("bad field %q", fieldPart)
		}

		key := TagEscaper.Unescape(string(fieldPart[:idx]))
		value, err := ParseFieldValue(fieldPart[idx+1:])
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		pv.SetField(key, value)
	}

	if !pv.HasFields() {
		return invalid("missing field set")
	}
	return nil
}

// ParseFieldValue parses a field value by its type marker:
//   - Integer: ends with 'i' (123i)
//   - Unsigned integer: ends with 'u' (123u)
//   - String: wrapped in double quotes ("hello")
//   - Boolean: t, T, true, True, TRUE, f, F, false, False, FALSE
//   - Float: anything else that parses as a number (123.45, 1e-06)
func ParseFieldValue(value []byte) (models.FieldValue, error) {
	if len(value) == 0 {
		return nil, invalid("empty field value")
	}

	s := string(value)

	switch s {
	case "t", "T", "true", "True", "TRUE":
		return models.Boolean(true), nil
	case "f", "F", "false", "False", "FALSE":
		return models.Boolean(false), nil
	}

	if value[0] == '"' {
		if len(value) < 2 || value[len(value)-1] != '"' {
			return nil, invalid("unterminated string %q", s)
		}
		unescaped := QuotedEscaper.Unescape(s[1 : len(s)-1])
		sanitized, _ := SanitizeUTF8(unescaped)
		return models.String(sanitized), nil
	}

	switch value[len(value)-1] {
	case 'i':
		v, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
		if err != nil {
			return nil, invalid("bad integer %q", s)
		}
		return models.Integer(v), nil
	case 'u':
		v, err := strconv.ParseUint(s[:len(s)-1], 10, 32)
		if errors.Is(err, strconv.ErrRange) {
			return nil, invalid("unsigned integer %q exceeds the uint32 range", s)
		}
		if err != nil {
			return nil, invalid("bad unsigned integer %q", s)
		}
		return models.UInteger(v), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalid("bad float %q", s)
	}
	return models.Float(v), nil
}
