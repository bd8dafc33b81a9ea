package client

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/basekick-labs/arcclient/pkg/lineprotocol"
	"github.com/basekick-labs/arcclient/pkg/serializer"
)

// QueryType is the query language of a ticket
type QueryType string

const (
	QueryTypeSQL       QueryType = "sql"
	QueryTypeInfluxQL  QueryType = "influxql"
	QueryTypeFlightSQL QueryType = "flightsql"
)

// ParseQueryType accepts sql, influxql and flightsql; empty means sql
func ParseQueryType(s string) (QueryType, error) {
	switch QueryType(strings.ToLower(strings.TrimSpace(s))) {
	case "", QueryTypeSQL:
		return QueryTypeSQL, nil
	case QueryTypeInfluxQL:
		return QueryTypeInfluxQL, nil
	case QueryTypeFlightSQL:
		return QueryTypeFlightSQL, nil
	default:
		return QueryTypeSQL, fmt.Errorf("unknown query type %q", s)
	}
}

// QueryPayload is the ticket body sent with DoGet
type QueryPayload struct {
	Database  string            `json:"database"`
	SQLQuery  string            `json:"sql_query"`
	QueryType QueryType         `json:"query_type"`
	Params    map[string]string `json:"params,omitempty"`
}

// Ticket renders the payload as JSON. Newlines in the query are replaced
// by spaces and an empty query type defaults to sql.
func (p QueryPayload) Ticket() ([]byte, error) {
	p.SQLQuery = strings.ReplaceAll(p.SQLQuery, "\n", " ")
	if p.QueryType == "" {
		p.QueryType = QueryTypeSQL
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return data, nil
}

// QueryOptions tunes a single query
type QueryOptions struct {
	Type   QueryType
	Params map[string]string
	// Serializer overrides the client's default strategy for Query
	Serializer *serializer.Kind
}

// DefaultGzipThreshold is the body size in bytes above which writes are gzipped
const DefaultGzipThreshold = 1000

// WriteOptions configures a write
type WriteOptions struct {
	// Precision of the timestamps in the written lines
	Precision lineprotocol.Precision
	// Headers are merged into the request, overriding client defaults
	Headers map[string]string
	// Gzip compresses bodies larger than GzipThreshold
	Gzip          bool
	GzipThreshold int
	// NoSync selects /api/v3/write_lp without waiting for WAL persistence;
	// false selects /api/v2/write
	NoSync bool
	// DefaultTags are merged into every point encoded by WritePoints
	DefaultTags map[string]string
	// Org is sent as the org query parameter when set
	Org string
}

// DefaultWriteOptions returns nanosecond precision, gzip above 1000 bytes
// and no_sync writes
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Precision:     lineprotocol.Nanosecond,
		Gzip:          true,
		GzipThreshold: DefaultGzipThreshold,
		NoSync:        true,
	}
}

// Clone returns a copy that shares no maps with o
func (o WriteOptions) Clone() WriteOptions {
	o.Headers = maps.Clone(o.Headers)
	o.DefaultTags = maps.Clone(o.DefaultTags)
	return o
}

// FlightOptions configures the gRPC channel used for queries
type FlightOptions struct {
	// Address overrides the host:port derived from the client URL
	Address           string
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
}

// DefaultFlightOptions pings every 5s and drops the channel after 20s
// without an answer
func DefaultFlightOptions() FlightOptions {
	return FlightOptions{
		KeepAliveInterval: 5 * time.Second,
		KeepAliveTimeout:  20 * time.Second,
	}
}
