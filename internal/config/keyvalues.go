package config

import (
	"fmt"
	"strings"
)

// ParseKeyValues parses "name=value" entries used for default tags and
// extra headers. Each entry is one pair, so values may contain ',' and '='.
// Later entries override earlier ones.
func ParseKeyValues(entries []string) (map[string]string, error) {
	out := make(map[string]string)

	for _, entry := range entries {
		pair := strings.TrimSpace(entry)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid entry: %s (expected 'name=value')", pair)
		}

		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("empty name in entry: %s", pair)
		}
		out[name] = strings.TrimSpace(parts[1])
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// SplitList splits a list given as one string, which is how it arrives
// from a single environment variable:
//
//	ARCCLIENT_WRITE_DEFAULT_TAGS="region=eu,host=a"
//	ARCCLIENT_WRITE_HEADERS="Accept=text/plain\, application/json"
//
// Entries are separated by unescaped commas; "\," is a literal comma.
func SplitList(s string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == ',':
			cur.WriteByte(',')
			i++
		case s[i] == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	out = append(out, cur.String())

	entries := out[:0]
	for _, e := range out {
		if strings.TrimSpace(e) != "" {
			entries = append(entries, e)
		}
	}
	return entries
}
