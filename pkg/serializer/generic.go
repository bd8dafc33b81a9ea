package serializer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Generic maps each row to a loosely typed map by rendering the batch as
// JSON objects and decoding them back. Numbers decode as json.Number so no
// precision is lost; nulls decode as nil.
type Generic struct {
	logger zerolog.Logger
}

// NewGeneric creates the generic ("unsafe") strategy
func NewGeneric(opts Options) *Generic {
	return &Generic{
		logger: opts.Logger.With().Str("component", "generic-serializer").Logger(),
	}
}

// Serialize converts rec into one map per row, in original row order
func (s *Generic) Serialize(ctx context.Context, rec arrow.Record) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := array.RecordToJSON(rec, &buf); err != nil {
		return nil, fmt.Errorf("generic: render batch: %w", err)
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()

	rows := make([]map[string]any, 0, rec.NumRows())
	for {
		var row map[string]any
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("generic: decode row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}

	if int64(len(rows)) != rec.NumRows() {
		return nil, fmt.Errorf("generic: decoded %d rows, batch has %d", len(rows), rec.NumRows())
	}
	return rows, nil
}
