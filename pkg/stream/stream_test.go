package stream

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basekick-labs/arcclient/pkg/models"
	"github.com/basekick-labs/arcclient/pkg/serializer"
)

// sliceSource replays prepared records, then fails with err (or io.EOF)
type sliceSource struct {
	recs     []arrow.Record
	err      error
	pos      int
	released atomic.Int32
}

func (s *sliceSource) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos < len(s.recs) {
		rec := s.recs[s.pos]
		s.recs[s.pos] = nil
		s.pos++
		return rec, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *sliceSource) Release() {
	s.released.Add(1)
	for _, rec := range s.recs {
		if rec != nil {
			rec.Release()
		}
	}
}

// blockingSource never yields a batch and waits for cancellation
type blockingSource struct {
	released atomic.Int32
}

func (s *blockingSource) Next(ctx context.Context) (arrow.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingSource) Release() { s.released.Add(1) }

type failingSerializer struct{}

func (failingSerializer) Serialize(context.Context, arrow.Record) ([]models.Row, error) {
	return nil, errors.New("corrupt batch")
}

var intSchema = arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)

func intRecord(mem memory.Allocator, values ...int64) arrow.Record {
	rb := array.NewRecordBuilder(mem, intSchema)
	defer rb.Release()
	rb.Field(0).(*array.Int64Builder).AppendValues(values, nil)
	return rb.NewRecord()
}

func typedSerializer() serializer.Serializer[models.Row] {
	return serializer.NewTyped(serializer.Options{Logger: zerolog.Nop()})
}

func values(t *testing.T, rows []models.Row) []int64 {
	t.Helper()
	out := make([]int64, len(rows))
	for i, row := range rows {
		v, ok := row.Get("v")
		require.True(t, ok)
		out[i] = int64(v.(models.Int64))
	}
	return out
}

func TestStream_CompletesInOrder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := &sliceSource{recs: []arrow.Record{
		intRecord(mem, 1, 2, 3),
		intRecord(mem, 4),
		intRecord(mem, 5, 6),
	}}

	s := New(context.Background(), src, typedSerializer(), Options{QueueSize: 2}, zerolog.Nop())
	rows, err := s.Collect()
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, values(t, rows))
	assert.Equal(t, Completed, s.State())
	assert.Equal(t, int32(1), src.released.Load())
}

func TestStream_EmptySource(t *testing.T) {
	src := &sliceSource{}
	s := New(context.Background(), src, typedSerializer(), Options{}, zerolog.Nop())

	assert.False(t, s.Next())
	<-s.Done()
	assert.NoError(t, s.Err())
	assert.Equal(t, Completed, s.State())
}

func TestStream_UpstreamErrorFails(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	upstream := errors.New("transport reset")
	src := &sliceSource{recs: []arrow.Record{intRecord(mem, 1, 2)}, err: upstream}

	s := New(context.Background(), src, typedSerializer(), Options{}, zerolog.Nop())
	rows, err := s.Collect()

	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, Failed, s.State())
	assert.Equal(t, []int64{1, 2}, values(t, rows))
	assert.Equal(t, int32(1), src.released.Load())
}

func TestStream_DecodeErrorPublishesNothing(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := &sliceSource{recs: []arrow.Record{intRecord(mem, 1, 2, 3), intRecord(mem, 4)}}

	s := New[models.Row](context.Background(), src, failingSerializer{}, Options{}, zerolog.Nop())
	rows, err := s.Collect()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt batch")
	assert.Empty(t, rows)
	assert.Equal(t, Failed, s.State())
}

func TestStream_CloseIsNotAFailure(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	recs := make([]arrow.Record, 20)
	for i := range recs {
		recs[i] = intRecord(mem, int64(i*10), int64(i*10+1), int64(i*10+2))
	}
	src := &sliceSource{recs: recs}

	s := New(context.Background(), src, typedSerializer(), Options{QueueSize: 1}, zerolog.Nop())
	require.True(t, s.Next())
	assert.Equal(t, []int64{0}, values(t, []models.Row{s.Item()}))

	require.NoError(t, s.Close())
	assert.Equal(t, Completed, s.State())
	assert.NoError(t, s.Err())
	assert.False(t, s.Next())
	assert.Equal(t, int32(1), src.released.Load())

	// Idempotent
	require.NoError(t, s.Close())
}

func TestStream_CloseWhileAwaitingBatch(t *testing.T) {
	src := &blockingSource{}
	s := New(context.Background(), src, typedSerializer(), Options{}, zerolog.Nop())

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the producer")
	}

	assert.Equal(t, Completed, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, int32(1), src.released.Load())
}

func TestStream_ParentCancelFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &blockingSource{}
	s := New(ctx, src, typedSerializer(), Options{}, zerolog.Nop())

	cancel()
	assert.False(t, s.Next())
	<-s.Done()

	assert.Equal(t, Failed, s.State())
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestStream_RawItemsPerBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := &sliceSource{recs: []arrow.Record{intRecord(mem, 1, 2), intRecord(mem, 3)}}
	s := New[[]byte](context.Background(), src, serializer.NewRaw(serializer.Options{Allocator: mem}), Options{}, zerolog.Nop())

	bufs, err := s.Collect()
	require.NoError(t, err)
	assert.Len(t, bufs, 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_batch", AwaitingBatch.String())
	assert.Equal(t, "decoding", Decoding.String())
	assert.Equal(t, "publishing", Publishing.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Publishing.Terminal())
}
