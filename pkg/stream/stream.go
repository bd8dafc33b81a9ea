// Package stream bridges an upstream source of Arrow record batches to a
// pull-based consumer.
//
// One producer goroutine owns the source. It loops
// AwaitingBatch -> Decoding -> Publishing until the source is exhausted
// (Completed) or an upstream or decode error occurs (Failed). Items are
// handed over through a bounded channel, so a slow consumer applies
// backpressure to the producer. Closing the stream is the consumer's way
// of cancelling; it ends in Completed, never in Failed.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog"

	"github.com/basekick-labs/arcclient/internal/metrics"
	"github.com/basekick-labs/arcclient/pkg/serializer"
)

// State is the producer's position in the stream lifecycle
type State int32

const (
	AwaitingBatch State = iota
	Decoding
	Publishing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingBatch:
		return "awaiting_batch"
	case Decoding:
		return "decoding"
	case Publishing:
		return "publishing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Source yields record batches in upstream order. Next returns io.EOF once
// the source is exhausted. The caller owns each returned record and must
// release it. Release frees the source; it is called exactly once, by the
// producer, when the stream ends.
type Source interface {
	Next(ctx context.Context) (arrow.Record, error)
	Release()
}

// DefaultQueueSize is the bounded queue capacity between producer and consumer
const DefaultQueueSize = 100

// Options configures a Stream
type Options struct {
	QueueSize int
}

// Stream delivers serialized items to a consumer.
//
// Usage:
//
//	s := stream.New(ctx, src, serializer.NewTyped(opts), stream.Options{}, logger)
//	defer s.Close()
//	for s.Next() {
//		row := s.Item()
//	}
//	if err := s.Err(); err != nil { ... }
type Stream[T any] struct {
	items    chan T
	done     chan struct{} // closed by Close
	finished chan struct{} // closed when the producer exits
	cancel   context.CancelFunc

	state     atomic.Int32
	closed    atomic.Bool
	closeOnce sync.Once
	err       error // written by the producer before finished is closed

	current T
	logger  zerolog.Logger
}

// New starts the producer and returns the consumer handle. Cancelling ctx
// fails the stream with the context error; closing the handle completes it.
func New[T any](ctx context.Context, src Source, ser serializer.Serializer[T], opts Options, logger zerolog.Logger) *Stream[T] {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		items:    make(chan T, opts.QueueSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		cancel:   cancel,
		logger:   logger.With().Str("component", "result-stream").Logger(),
	}
	s.state.Store(int32(AwaitingBatch))

	go s.run(ctx, src, ser)
	return s
}

func (s *Stream[T]) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Stream[T]) run(ctx context.Context, src Source, ser serializer.Serializer[T]) {
	m := metrics.Get()
	var batches, published int

	defer func() {
		src.Release()
		s.cancel()
		close(s.finished)
		close(s.items)

		s.logger.Debug().
			Int("batches", batches).
			Int("items", published).
			Str("state", s.State().String()).
			Msg("Result stream finished")
	}()

	for {
		s.setState(AwaitingBatch)
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.complete()
			return
		}
		if err != nil {
			s.stop(err)
			return
		}
		batches++
		m.IncBatchesReceived()

		s.setState(Decoding)
		start := time.Now()
		items, err := ser.Serialize(ctx, rec)
		rows := rec.NumRows()
		rec.Release()
		if err != nil {
			// Nothing of a batch that failed to decode is published
			s.stop(err)
			return
		}
		m.RecordDecodeLatency(time.Since(start))
		m.IncRowsDecoded(rows)

		s.setState(Publishing)
		for _, item := range items {
			select {
			case s.items <- item:
				published++
				m.IncItemsPublished()
			case <-s.done:
				s.cancelled()
				return
			case <-ctx.Done():
				s.stop(ctx.Err())
				return
			}
		}
	}
}

func (s *Stream[T]) complete() {
	s.setState(Completed)
	metrics.Get().IncStreamsCompleted()
}

func (s *Stream[T]) cancelled() {
	s.setState(Completed)
	metrics.Get().IncStreamsCancelled()
}

// stop ends the stream after err. Errors caused by the consumer closing
// the stream are not failures.
func (s *Stream[T]) stop(err error) {
	if s.closed.Load() {
		s.cancelled()
		return
	}
	s.err = err
	s.setState(Failed)
	metrics.Get().IncStreamsFailed()
	s.logger.Error().Err(err).Msg("Result stream failed")
}

// Next advances to the next item, blocking until one is available or the
// stream ends. It returns false once the stream is finished or closed.
func (s *Stream[T]) Next() bool {
	if s.closed.Load() {
		return false
	}
	item, ok := <-s.items
	if !ok {
		var zero T
		s.current = zero
		return false
	}
	s.current = item
	return true
}

// Item returns the item loaded by the last successful Next
func (s *Stream[T]) Item() T {
	return s.current
}

// Err returns the error that failed the stream, if any. It is nil while
// the stream is running and after a clean or consumer-initiated completion.
func (s *Stream[T]) Err() error {
	select {
	case <-s.finished:
		return s.err
	default:
		return nil
	}
}

// State returns the producer's current state
func (s *Stream[T]) State() State {
	return State(s.state.Load())
}

// Done is closed when the producer has exited
func (s *Stream[T]) Done() <-chan struct{} {
	return s.finished
}

// Close drops the consumer side. The producer stops at its next
// suspension point, releases the source and any in-flight work, and ends
// in Completed. Close waits for the producer to exit and is idempotent.
func (s *Stream[T]) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.cancel()
	})
	<-s.finished
	return nil
}

// Collect drains the stream into a slice and closes it
func (s *Stream[T]) Collect() ([]T, error) {
	var out []T
	for s.Next() {
		out = append(out, s.Item())
	}
	err := s.Err()
	s.Close()
	return out, err
}
