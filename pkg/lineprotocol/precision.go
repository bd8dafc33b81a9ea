package lineprotocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Precision is the unit of a line protocol timestamp. The zero value is
// nanoseconds, which is also what the encoder uses when no precision is given.
type Precision int

const (
	Nanosecond Precision = iota
	Microsecond
	Millisecond
	Second
)

// String returns the short unit name used by the v2 write API (ns, us, ms, s)
func (p Precision) String() string {
	return p.V2()
}

// V2 returns the precision query value for /api/v2/write
func (p Precision) V2() string {
	switch p {
	case Second:
		return "s"
	case Millisecond:
		return "ms"
	case Microsecond:
		return "us"
	default:
		return "ns"
	}
}

// V3 returns the precision query value for /api/v3/write_lp
func (p Precision) V3() string {
	switch p {
	case Second:
		return "second"
	case Millisecond:
		return "millisecond"
	case Microsecond:
		return "microsecond"
	default:
		return "nanosecond"
	}
}

// ParsePrecision accepts both the short and the long unit names
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ns", "nanosecond", "nanoseconds":
		return Nanosecond, nil
	case "us", "µs", "microsecond", "microseconds":
		return Microsecond, nil
	case "ms", "millisecond", "milliseconds":
		return Millisecond, nil
	case "s", "second", "seconds":
		return Second, nil
	default:
		return Nanosecond, fmt.Errorf("unknown precision %q", s)
	}
}

// Timestamp renders t as an integer count of precision units since the epoch
func (p Precision) Timestamp(t time.Time) string {
	switch p {
	case Second:
		return strconv.FormatInt(t.Unix(), 10)
	case Millisecond:
		return strconv.FormatInt(t.UnixMilli(), 10)
	case Microsecond:
		return strconv.FormatInt(t.UnixMicro(), 10)
	default:
		return strconv.FormatInt(t.UnixNano(), 10)
	}
}
