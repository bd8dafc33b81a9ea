// Package client talks to an Arc / InfluxDB 3 compatible server: queries
// stream Arrow batches over Flight DoGet, writes post line protocol over HTTP.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/basekick-labs/arcclient/internal/circuitbreaker"
	"github.com/basekick-labs/arcclient/internal/queryregistry"
	"github.com/basekick-labs/arcclient/pkg/serializer"
)

// DefaultHTTPTimeout bounds a single write request
const DefaultHTTPTimeout = 30 * time.Second

// Config configures a Client
type Config struct {
	// URL of the server, http or https. Flight uses the same host and port
	// unless Flight.Address is set.
	URL   string
	Token string

	// Serializer is the strategy used by Query
	Serializer      serializer.Kind
	QueueSize       int
	Workers         int
	InlineThreshold int
	Allocator       memory.Allocator

	Flight FlightOptions
	// Write holds the defaults used when a write passes nil options
	Write WriteOptions

	// Breaker guards the write endpoint; nil disables it
	Breaker     *circuitbreaker.Config
	HTTPTimeout time.Duration

	// QueryHistory is how many finished queries QueryHistory can report
	QueryHistory int
}

// DefaultConfig returns a configuration for url with default options
func DefaultConfig(url string) Config {
	return Config{
		URL:         url,
		Serializer:  serializer.KindTyped,
		Flight:      DefaultFlightOptions(),
		Write:       DefaultWriteOptions(),
		HTTPTimeout: DefaultHTTPTimeout,
	}
}

// Client issues queries and writes against one server
type Client struct {
	cfg     Config
	baseURL *url.URL
	flight  flight.Client
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	queries *queryregistry.Registry
	logger  zerolog.Logger
}

// New creates a client. The Flight channel connects lazily, so New does
// not fail when the server is down.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", cfg.URL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", cfg.URL)
	}

	if cfg.Flight.KeepAliveInterval <= 0 {
		cfg.Flight.KeepAliveInterval = DefaultFlightOptions().KeepAliveInterval
	}
	if cfg.Flight.KeepAliveTimeout <= 0 {
		cfg.Flight.KeepAliveTimeout = DefaultFlightOptions().KeepAliveTimeout
	}
	if cfg.Write.GzipThreshold <= 0 {
		cfg.Write.GzipThreshold = DefaultGzipThreshold
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.DefaultAllocator
	}

	c := &Client{
		cfg:     cfg,
		baseURL: u,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		queries: queryregistry.NewRegistry(cfg.QueryHistory, logger),
		logger:  logger.With().Str("component", "arc-client").Logger(),
	}

	if cfg.Breaker != nil {
		bc := *cfg.Breaker
		bc.IsFailure = isEndpointFailure
		c.breaker = circuitbreaker.New(&bc, logger)
	}

	addr := flightAddress(u, cfg.Flight.Address)
	fc, err := flight.NewClientWithMiddleware(addr, nil, nil, c.dialOptions(u)...)
	if err != nil {
		return nil, fmt.Errorf("create flight client for %s: %w", addr, err)
	}
	c.flight = fc

	c.logger.Debug().
		Str("url", u.Redacted()).
		Str("flight_addr", addr).
		Str("serializer", cfg.Serializer.String()).
		Bool("write_breaker", c.breaker != nil).
		Msg("Client created")

	return c, nil
}

func (c *Client) dialOptions(u *url.URL) []grpc.DialOption {
	creds := insecure.NewCredentials()
	if u.Scheme == "https" {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.cfg.Flight.KeepAliveInterval,
			Timeout:             c.cfg.Flight.KeepAliveTimeout,
			PermitWithoutStream: true,
		}),
	}
}

// flightAddress returns override, or the url's host with the scheme's
// default port filled in
func flightAddress(u *url.URL, override string) string {
	if override != "" {
		return override
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Close cancels open queries, then releases the Flight channel and idle
// HTTP connections
func (c *Client) Close() error {
	if n := c.queries.CancelAll(); n > 0 {
		c.logger.Info().Int("queries", n).Msg("Cancelled open queries on close")
	}
	c.http.CloseIdleConnections()
	if c.flight == nil {
		return nil
	}
	if err := c.flight.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close flight client: %w", err)
	}
	return nil
}

// BreakerState reports the write circuit breaker state. It is closed when
// no breaker is configured.
func (c *Client) BreakerState() circuitbreaker.State {
	if c.breaker == nil {
		return circuitbreaker.StateClosed
	}
	return c.breaker.State()
}

func (c *Client) serializerOptions() serializer.Options {
	return serializer.Options{
		Workers:         c.cfg.Workers,
		InlineThreshold: c.cfg.InlineThreshold,
		Allocator:       c.cfg.Allocator,
		Logger:          c.logger,
	}
}

// endpoint joins path onto the base url's path
func (c *Client) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}
