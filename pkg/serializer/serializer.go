// Package serializer turns Arrow record batches into consumer-facing items.
//
// Three strategies are available and selected at runtime by Kind:
//
//   - Generic: loosely typed maps produced by a JSON-style mapping of the batch
//   - Typed:   rows of models.Value, converted column by column in parallel
//   - Raw:     the batch re-encoded verbatim as an Arrow IPC stream
//
// All three agree on row count and column set for the same batch.
package serializer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	"github.com/basekick-labs/arcclient/pkg/models"
)

// Serializer converts one batch into zero or more items of type T
type Serializer[T any] interface {
	Serialize(ctx context.Context, rec arrow.Record) ([]T, error)
}

// Kind selects a serialization strategy
type Kind int

const (
	// KindTyped is the default strategy
	KindTyped Kind = iota
	KindGeneric
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindRaw:
		return "raw"
	default:
		return "library"
	}
}

// ParseKind maps a strategy name to a Kind. "unsafe" is an alias for
// generic and "typed" for library. The empty string selects library.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "library", "typed":
		return KindTyped, nil
	case "generic", "unsafe":
		return KindGeneric, nil
	case "raw":
		return KindRaw, nil
	default:
		return KindTyped, fmt.Errorf("unknown serializer %q (want generic, library or raw)", s)
	}
}

// DefaultMaxWorkers caps the per-column worker pool
const DefaultMaxWorkers = 8

// DefaultInlineThreshold is the row count below which a batch is
// converted without spawning workers
const DefaultInlineThreshold = 100

// Options configures the strategies. Zero values select defaults.
type Options struct {
	// Workers bounds concurrent column conversions (default min(GOMAXPROCS, 8))
	Workers int
	// InlineThreshold is the row count below which conversion runs inline
	InlineThreshold int
	// Allocator is used by the Raw strategy (default memory.DefaultAllocator)
	Allocator memory.Allocator
	Logger    zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = min(runtime.GOMAXPROCS(0), DefaultMaxWorkers)
	}
	if o.InlineThreshold <= 0 {
		o.InlineThreshold = DefaultInlineThreshold
	}
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	return o
}

// ForKind returns the strategy for kind with its item type erased, for
// callers that pick the strategy at runtime.
func ForKind(kind Kind, opts Options) Serializer[any] {
	switch kind {
	case KindGeneric:
		return Erase[map[string]any](NewGeneric(opts))
	case KindRaw:
		return Erase[[]byte](NewRaw(opts))
	default:
		return Erase[models.Row](NewTyped(opts))
	}
}

// Erase adapts a typed serializer to Serializer[any]
func Erase[T any](s Serializer[T]) Serializer[any] {
	return erased[T]{s: s}
}

type erased[T any] struct {
	s Serializer[T]
}

func (e erased[T]) Serialize(ctx context.Context, rec arrow.Record) ([]any, error) {
	items, err := e.s.Serialize(ctx, rec)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}
