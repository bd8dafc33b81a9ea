package lineprotocol

import "unicode/utf8"

// SanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD and reports
// whether anything was replaced. Valid input is returned without copying.
func SanitizeUTF8(s string) (string, bool) {
	if utf8.ValidString(s) {
		return s, false
	}

	result := make([]byte, 0, len(s)+len(s)/8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			result = utf8.AppendRune(result, utf8.RuneError)
			i++
			continue
		}
		result = append(result, s[i:i+size]...)
		i += size
	}
	return string(result), true
}
