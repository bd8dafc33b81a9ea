package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/basekick-labs/arcclient/internal/config"
	"github.com/basekick-labs/arcclient/pkg/client"
	"github.com/basekick-labs/arcclient/pkg/lineprotocol"
)

// maxLineSize bounds a single line protocol line read from input
const maxLineSize = 10 * 1024 * 1024

func runWrite(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader) error {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	database := fs.String("db", cfg.Write.Database, "Target database")
	file := fs.String("file", "-", "Line protocol file, - for stdin")
	precision := fs.String("precision", cfg.Write.Precision, "Timestamp precision of the input: ns, us, ms or s")
	noSync := fs.Bool("no-sync", cfg.Write.NoSync, "Use /api/v3/write_lp without waiting for WAL persistence")
	org := fs.String("org", cfg.Write.Org, "Organization sent with the write")
	batchSize := fs.Int("batch-size", 5000, "Lines per request")
	showMetrics := fs.Bool("metrics", false, "Print client metrics to stderr when done")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batchSize <= 0 {
		return fmt.Errorf("-batch-size must be positive")
	}

	p, err := lineprotocol.ParsePrecision(*precision)
	if err != nil {
		return err
	}
	cfg.Write.Precision = p.V2()

	in := stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(c)

	cc, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	opts := cc.Write
	opts.NoSync = *noSync
	opts.Org = *org

	total := 0
	err = readPoints(in, *batchSize, func(points []*client.Point) error {
		if err := c.WritePoints(ctx, *database, points, &opts); err != nil {
			return err
		}
		total += len(points)
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("database", *database).
		Int("points", total).
		Str("precision", p.V2()).
		Bool("no_sync", *noSync).
		Msg("Write finished")

	if *showMetrics {
		printMetrics(os.Stderr)
	}
	return nil
}

// readPoints parses line protocol from r and hands it to flush in batches
// of at most batchSize points. Blank lines and comments are skipped; the
// first invalid line aborts with its line number.
func readPoints(r io.Reader, batchSize int, flush func([]*client.Point) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	batch := make([]*client.Point, 0, batchSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		pv, err := lineprotocol.ParseLine(scanner.Bytes())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if pv == nil {
			continue
		}

		batch = append(batch, client.FromValues(pv))
		if len(batch) == batchSize {
			if err := flush(batch); err != nil {
				return err
			}
			batch = make([]*client.Point, 0, batchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if len(batch) > 0 {
		return flush(batch)
	}
	return nil
}
