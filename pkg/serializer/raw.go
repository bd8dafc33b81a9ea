package serializer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Raw re-encodes each batch as a self-contained Arrow IPC stream without
// decoding any cell. It yields exactly one buffer per batch.
type Raw struct {
	mem memory.Allocator
}

// NewRaw creates the raw strategy
func NewRaw(opts Options) *Raw {
	opts = opts.withDefaults()
	return &Raw{mem: opts.Allocator}
}

// Serialize writes rec, schema included, into a single IPC stream buffer
func (s *Raw) Serialize(ctx context.Context, rec arrow.Record) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.mem))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("raw: write batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("raw: close stream: %w", err)
	}
	return [][]byte{buf.Bytes()}, nil
}

// DecodeRaw parses a buffer produced by Raw back into record batches. The
// caller must release every returned record.
func DecodeRaw(data []byte, mem memory.Allocator) ([]arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("raw: open stream: %w", err)
	}
	defer r.Release()

	var recs []arrow.Record
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		for _, rec := range recs {
			rec.Release()
		}
		return nil, fmt.Errorf("raw: read stream: %w", err)
	}
	return recs, nil
}
