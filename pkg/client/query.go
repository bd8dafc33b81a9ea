package client

import (
	"context"
	"time"

	"github.com/basekick-labs/arcclient/internal/metrics"
	"github.com/basekick-labs/arcclient/internal/queryregistry"
	"github.com/basekick-labs/arcclient/pkg/models"
	"github.com/basekick-labs/arcclient/pkg/serializer"
	"github.com/basekick-labs/arcclient/pkg/stream"
)

func (c *Client) payload(database, query string, opts *QueryOptions) QueryPayload {
	p := QueryPayload{Database: database, SQLQuery: query, QueryType: QueryTypeSQL}
	if opts != nil {
		if opts.Type != "" {
			p.QueryType = opts.Type
		}
		p.Params = opts.Params
	}
	return p
}

// runQuery opens the DoGet stream and hands it to a producer using ser.
// The query stays in the registry until the producer exits.
func runQuery[T any](ctx context.Context, c *Client, payload QueryPayload, kind serializer.Kind, ser serializer.Serializer[T]) (*stream.Stream[T], error) {
	m := metrics.Get()
	m.IncQueries()
	start := time.Now()

	id, ctx := c.queries.Register(ctx, payload.Database, payload.SQLQuery, string(payload.QueryType), kind.String())

	src, err := c.openFlight(ctx, payload)
	if err != nil {
		c.queries.Fail(id, err.Error())
		m.IncQueriesFailed()
		c.logger.Error().
			Err(err).
			Str("database", payload.Database).
			Str("query_type", string(payload.QueryType)).
			Msg("Query failed")
		return nil, err
	}

	c.logger.Debug().
		Str("database", payload.Database).
		Str("query_id", id).
		Str("query_type", string(payload.QueryType)).
		Dur("open_time", time.Since(start)).
		Msg("Query stream opened")

	s := stream.New(ctx, src, ser, stream.Options{QueueSize: c.cfg.QueueSize}, c.logger)
	go func() {
		<-s.Done()
		if err := s.Err(); err != nil {
			c.queries.Fail(id, err.Error())
			return
		}
		c.queries.Complete(id)
	}()
	return s, nil
}

// ActiveQueries lists the queries whose result streams are still open
func (c *Client) ActiveQueries() []*queryregistry.TrackedQuery {
	return c.queries.GetActive()
}

// QueryHistory returns up to limit finished queries, newest first. A
// non-positive limit returns the whole history.
func (c *Client) QueryHistory(limit int) []*queryregistry.TrackedQuery {
	return c.queries.GetHistory(limit)
}

// CancelQuery cancels an open query by ID. Its stream ends in Failed with
// context.Canceled. Returns false if no such query is open.
func (c *Client) CancelQuery(id string) bool {
	return c.queries.Cancel(id)
}

// Query runs query against database and streams items produced by the
// configured strategy (or opts.Serializer): models.Row for library,
// map[string]any for generic, []byte Arrow IPC buffers for raw.
func (c *Client) Query(ctx context.Context, database, query string, opts *QueryOptions) (*stream.Stream[any], error) {
	kind := c.cfg.Serializer
	if opts != nil && opts.Serializer != nil {
		kind = *opts.Serializer
	}
	return runQuery(ctx, c, c.payload(database, query, opts), kind, serializer.ForKind(kind, c.serializerOptions()))
}

// QueryRows streams typed rows
func (c *Client) QueryRows(ctx context.Context, database, query string, opts *QueryOptions) (*stream.Stream[models.Row], error) {
	return runQuery[models.Row](ctx, c, c.payload(database, query, opts), serializer.KindTyped, serializer.NewTyped(c.serializerOptions()))
}

// QueryMaps streams loosely typed rows
func (c *Client) QueryMaps(ctx context.Context, database, query string, opts *QueryOptions) (*stream.Stream[map[string]any], error) {
	return runQuery[map[string]any](ctx, c, c.payload(database, query, opts), serializer.KindGeneric, serializer.NewGeneric(c.serializerOptions()))
}

// QueryRaw streams one Arrow IPC buffer per received batch
func (c *Client) QueryRaw(ctx context.Context, database, query string, opts *QueryOptions) (*stream.Stream[[]byte], error) {
	return runQuery[[]byte](ctx, c, c.payload(database, query, opts), serializer.KindRaw, serializer.NewRaw(c.serializerOptions()))
}
