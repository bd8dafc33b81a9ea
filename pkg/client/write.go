package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/basekick-labs/arcclient/internal/circuitbreaker"
	"github.com/basekick-labs/arcclient/internal/metrics"
	"github.com/basekick-labs/arcclient/pkg/lineprotocol"
)

const (
	writePathV2 = "/api/v2/write"
	writePathV3 = "/api/v3/write_lp"

	contentTypeLineProtocol = "text/plain; charset=utf-8"
)

// gzipWriterPool reuses compressors across writes
var gzipWriterPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(nil)
	},
}

func compressBody(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 2)

	zw := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(zw)
	zw.Reset(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// resolveWriteOptions returns opts, or the client defaults when opts is nil
func (c *Client) resolveWriteOptions(opts *WriteOptions) WriteOptions {
	if opts == nil {
		return c.cfg.Write.Clone()
	}
	o := opts.Clone()
	if o.GzipThreshold <= 0 {
		o.GzipThreshold = DefaultGzipThreshold
	}
	return o
}

// WriteURL returns the endpoint a write to database goes to. no_sync writes
// use the v3 API, other writes the v2 API.
func (c *Client) WriteURL(database string, opts WriteOptions) string {
	q := url.Values{}
	var u *url.URL
	if opts.NoSync {
		u = c.endpoint(writePathV3)
		q.Set("db", database)
		q.Set("precision", opts.Precision.V3())
		q.Set("no_sync", "true")
	} else {
		u = c.endpoint(writePathV2)
		q.Set("bucket", database)
		q.Set("precision", opts.Precision.V2())
	}
	if opts.Org != "" {
		q.Set("org", opts.Org)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Write posts lines to database. A nil opts uses the client defaults.
// Writing no lines is a no-op.
func (c *Client) Write(ctx context.Context, database string, lines []string, opts *WriteOptions) error {
	if len(lines) == 0 {
		return nil
	}
	o := c.resolveWriteOptions(opts)
	m := metrics.Get()
	m.IncWrites()

	body := []byte(strings.Join(lines, "\n"))
	m.IncWriteBytesRaw(int64(len(body)))

	gzipped := false
	if o.Gzip && len(body) > o.GzipThreshold {
		compressed, err := compressBody(body)
		if err != nil {
			m.IncWritesFailed()
			return err
		}
		body = compressed
		gzipped = true
	}

	target := c.WriteURL(database, o)
	start := time.Now()

	send := func(ctx context.Context) error {
		return c.send(ctx, target, body, gzipped, o.Headers)
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, send)
	} else {
		err = send(ctx)
	}

	switch {
	case err == nil:
		m.IncWritesSuccess()
		m.IncWriteBytesSent(int64(len(body)))
		c.logger.Debug().
			Str("database", database).
			Int("lines", len(lines)).
			Int("bytes", len(body)).
			Bool("gzip", gzipped).
			Dur("duration", time.Since(start)).
			Msg("Write completed")
		return nil
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		m.IncWritesRejected()
		return fmt.Errorf("write to %s: %w", database, err)
	case errors.Is(err, ErrUnauthorized):
		m.IncWritesUnauthorized()
	default:
		m.IncWritesFailed()
	}

	if !errors.Is(err, ErrCancelled) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = &transportError{err: err}
	}
	c.logger.Error().
		Err(err).
		Str("database", database).
		Int("lines", len(lines)).
		Msg("Write failed")
	return err
}

// WritePoints encodes points and writes them. Points without a measurement
// or fields are skipped; a batch with nothing to emit sends no request.
func (c *Client) WritePoints(ctx context.Context, database string, points []*Point, opts *WriteOptions) error {
	o := c.resolveWriteOptions(opts)

	lines := EncodePoints(points, o.Precision, o.DefaultTags)

	m := metrics.Get()
	m.IncPointsEncoded(int64(len(lines)))
	if skipped := len(points) - len(lines); skipped > 0 {
		m.IncPointsSkipped(int64(skipped))
		c.logger.Debug().Int("skipped", skipped).Msg("Skipped points without measurement or fields")
	}

	return c.Write(ctx, database, lines, &o)
}

// send performs one write request
func (c *Client) send(ctx context.Context, target string, body []byte, gzipped bool, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create write request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeLineProtocol)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
	}
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &WriteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// EncodePoints renders points as line protocol, skipping points that
// cannot be emitted
func EncodePoints(points []*Point, precision lineprotocol.Precision, defaultTags map[string]string) []string {
	lines := make([]string, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		if line, ok := p.ToLineProtocol(precision, defaultTags); ok {
			lines = append(lines, line)
		}
	}
	return lines
}
