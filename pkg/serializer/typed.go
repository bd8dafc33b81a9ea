package serializer

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/basekick-labs/arcclient/internal/convert"
	"github.com/basekick-labs/arcclient/internal/metrics"
	"github.com/basekick-labs/arcclient/pkg/models"
)

// Typed converts each column through the column converter and transposes
// the results into rows. Columns are independent units of work: large
// batches fan them out to a bounded worker pool, small batches convert
// inline.
type Typed struct {
	workers         int
	inlineThreshold int
	logger          zerolog.Logger
}

// NewTyped creates the typed ("library") strategy
func NewTyped(opts Options) *Typed {
	opts = opts.withDefaults()
	return &Typed{
		workers:         opts.Workers,
		inlineThreshold: opts.InlineThreshold,
		logger:          opts.Logger.With().Str("component", "typed-serializer").Logger(),
	}
}

// Serialize converts rec into rows in original row order
func (s *Typed) Serialize(ctx context.Context, rec arrow.Record) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	rows := int(rec.NumRows())
	cols, err := s.convertColumns(ctx, rec, rows)
	if err != nil {
		return nil, err
	}

	var fallbacks int64
	for _, c := range cols {
		for _, v := range c.Values {
			if _, ok := v.(models.Fallback); ok {
				fallbacks++
			}
		}
	}
	if fallbacks > 0 {
		metrics.Get().IncFallbackValues(fallbacks)
		s.logger.Debug().Int64("cells", fallbacks).Msg("Unsupported column types decoded as fallback")
	}

	out := convert.Transpose(cols, rows)

	s.logger.Debug().
		Int("rows", rows).
		Int("columns", len(cols)).
		Dur("elapsed", time.Since(start)).
		Msg("Batch converted")

	return out, nil
}

func (s *Typed) convertColumns(ctx context.Context, rec arrow.Record, rows int) ([]convert.Column, error) {
	if rows < s.inlineThreshold || rec.NumCols() < 2 || s.workers < 2 {
		return convert.Record(rec), nil
	}

	schema := rec.Schema()
	cols := make([]convert.Column, rec.NumCols())

	// Each unit reads one immutable column and writes only its own slot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for j := range cols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cols[j] = convert.Convert(schema.Field(j), rec.Column(j), rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("convert columns: %w", err)
	}
	return cols, nil
}
