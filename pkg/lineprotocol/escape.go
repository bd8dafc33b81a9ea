package lineprotocol

import "strings"

// Escaper backslash-escapes a fixed set of special characters. A literal
// backslash is always escaped as well. Escaping is a single left-to-right
// pass and is not idempotent: escaping escaped text doubles the backslashes.
type Escaper struct {
	special string
}

var (
	// MeasurementEscaper escapes measurement names (comma and space)
	MeasurementEscaper = Escaper{special: ", "}

	// TagEscaper escapes tag keys, tag values and field keys (comma, equals, space)
	TagEscaper = Escaper{special: ",= "}

	// QuotedEscaper escapes the content of a double-quoted string field
	QuotedEscaper = Escaper{special: `"`}
)

func (e Escaper) needsEscape(c byte) bool {
	return c == '\\' || strings.IndexByte(e.special, c) >= 0
}

// Escape returns s with every special character and backslash prefixed by a backslash
func (e Escaper) Escape(s string) string {
	// Fast path: nothing to escape, no allocation
	if !strings.ContainsAny(s, e.special) && strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/8 + 1)
	// Special characters are all ASCII, so walking bytes never splits a rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		if e.needsEscape(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape reverses Escape. A backslash followed by a character that is not
// escapable by this escaper is kept verbatim.
func (e Escaper) Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && e.needsEscape(s[i+1]) {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
