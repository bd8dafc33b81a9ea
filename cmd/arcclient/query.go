package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/basekick-labs/arcclient/internal/config"
	"github.com/basekick-labs/arcclient/pkg/client"
	"github.com/basekick-labs/arcclient/pkg/models"
	"github.com/basekick-labs/arcclient/pkg/serializer"
)

func runQuery(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	database := fs.String("db", cfg.Query.Database, "Database to query")
	query := fs.String("q", "", "Query text (required)")
	queryType := fs.String("type", cfg.Query.Type, "Query language: sql, influxql or flightsql")
	serializerName := fs.String("serializer", cfg.Query.Serializer, "Row strategy: library, generic or raw")
	output := fs.String("output", "json", "Output format for rows: json or msgpack")
	showMetrics := fs.Bool("metrics", false, "Print client metrics to stderr when done")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		return fmt.Errorf("-q is required")
	}

	qt, err := client.ParseQueryType(*queryType)
	if err != nil {
		return err
	}
	kind, err := serializer.ParseKind(*serializerName)
	if err != nil {
		return err
	}
	out, err := newItemWriter(*output, stdout)
	if err != nil {
		return err
	}

	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(c)

	s, err := c.Query(ctx, *database, *query, &client.QueryOptions{Type: qt, Serializer: &kind})
	if err != nil {
		return err
	}
	defer s.Close()

	count := 0
	for s.Next() {
		if err := out.Write(s.Item()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		count++
	}
	if err := s.Err(); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	log.Info().
		Str("database", *database).
		Int("items", count).
		Str("state", s.State().String()).
		Msg("Query finished")

	if *showMetrics {
		printMetrics(os.Stderr)
	}
	return nil
}

// itemWriter renders stream items to the output
type itemWriter interface {
	Write(item any) error
	Flush() error
}

func newItemWriter(format string, w io.Writer) (itemWriter, error) {
	bw := bufio.NewWriter(w)
	switch format {
	case "json", "":
		return &jsonWriter{w: bw, enc: json.NewEncoder(bw)}, nil
	case "msgpack":
		return &msgpackWriter{w: bw, enc: msgpack.NewEncoder(bw)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json or msgpack)", format)
	}
}

// jsonWriter emits one JSON document per line. Raw buffers are copied
// through unchanged.
type jsonWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func (j *jsonWriter) Write(item any) error {
	if raw, ok := item.([]byte); ok {
		_, err := j.w.Write(raw)
		return err
	}
	return j.enc.Encode(item)
}

func (j *jsonWriter) Flush() error { return j.w.Flush() }

// msgpackWriter emits a stream of msgpack maps, keys in column order for
// typed rows
type msgpackWriter struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
}

func (m *msgpackWriter) Write(item any) error {
	switch v := item.(type) {
	case []byte:
		_, err := m.w.Write(v)
		return err
	case models.Row:
		if err := m.enc.EncodeMapLen(len(v.Columns)); err != nil {
			return err
		}
		for i, name := range v.Columns {
			if err := m.enc.EncodeString(name); err != nil {
				return err
			}
			if err := m.enc.Encode(models.NativeOf(v.Values[i])); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = fromJSONNumber(val)
		}
		return m.enc.Encode(out)
	default:
		return m.enc.Encode(item)
	}
}

func (m *msgpackWriter) Flush() error { return m.w.Flush() }

// fromJSONNumber turns the numbers kept as text by the generic strategy
// back into integers or floats
func fromJSONNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
