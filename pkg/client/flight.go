package client

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc/metadata"
)

// FlightSource adapts a DoGet response to stream.Source
type FlightSource struct {
	reader *flight.Reader
	cancel context.CancelFunc
}

// openFlight issues DoGet for payload and waits for the schema message.
// The RPC outlives the call: it is bound to ctx and to the returned
// source's Release.
func (c *Client) openFlight(ctx context.Context, payload QueryPayload) (*FlightSource, error) {
	ticket, err := payload.Ticket()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	if c.cfg.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.cfg.Token)
	}

	stream, err := c.flight.DoGet(ctx, &flight.Ticket{Ticket: ticket})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("flight DoGet: %w", err)
	}

	src, err := newFlightSource(stream, c.cfg.Allocator, cancel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("read flight schema: %w", err)
	}
	return src, nil
}

func newFlightSource(r flight.DataStreamReader, mem memory.Allocator, cancel context.CancelFunc) (*FlightSource, error) {
	reader, err := flight.NewRecordReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, err
	}
	return &FlightSource{reader: reader, cancel: cancel}, nil
}

// Schema returns the schema announced by the server
func (s *FlightSource) Schema() *arrow.Schema {
	return s.reader.Schema()
}

// Next returns the next batch or io.EOF. Cancelling ctx aborts the RPC so
// a blocked read returns promptly.
func (s *FlightSource) Next(ctx context.Context) (arrow.Record, error) {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	if s.reader.Next() {
		rec := s.reader.Record()
		rec.Retain()
		return rec, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.reader.Err(); err != nil {
		return nil, fmt.Errorf("flight stream: %w", err)
	}
	return nil, io.EOF
}

// Release cancels the RPC and frees the reader
func (s *FlightSource) Release() {
	s.cancel()
	s.reader.Release()
}
