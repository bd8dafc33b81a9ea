package client

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// capturedWrite is one request seen by the fake write server
type capturedWrite struct {
	Path            string
	Query           url.Values
	Authorization   string
	ContentType     string
	ContentEncoding string
	RequestID       string
	Custom          string
	Body            string
}

// writeServer is a fiber app exposing the v2 and v3 write endpoints
type writeServer struct {
	app *fiber.App

	mu       sync.Mutex
	status   int
	response string
	requests []capturedWrite
}

func newWriteServer(t *testing.T) *writeServer {
	t.Helper()

	s := &writeServer{status: fiber.StatusNoContent}
	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.app.Post("/api/v2/write", s.handle)
	s.app.Post("/api/v3/write_lp", s.handle)
	t.Cleanup(func() { _ = s.app.Shutdown() })
	return s
}

func (s *writeServer) handle(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		body = decompressed
	}

	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	req := capturedWrite{
		Path:            strings.Clone(c.Path()),
		Query:           query,
		Authorization:   strings.Clone(c.Get(fiber.HeaderAuthorization)),
		ContentType:     strings.Clone(c.Get(fiber.HeaderContentType)),
		ContentEncoding: strings.Clone(c.Get(fiber.HeaderContentEncoding)),
		RequestID:       strings.Clone(c.Get(fiber.HeaderXRequestID)),
		Custom:          strings.Clone(c.Get("X-Custom")),
		Body:            string(body),
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	code, response := s.status, s.response
	s.mu.Unlock()

	c.Status(code)
	if response != "" {
		return c.SendString(response)
	}
	return nil
}

func (s *writeServer) respond(code int, body string) {
	s.mu.Lock()
	s.status, s.response = code, body
	s.mu.Unlock()
}

func (s *writeServer) seen() []capturedWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedWrite(nil), s.requests...)
}

// RoundTrip sends requests straight into the fiber app
func (s *writeServer) RoundTrip(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}

// newWriteClient returns a client whose HTTP traffic goes to srv
func newWriteClient(t *testing.T, srv *writeServer, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig("http://arc.test:8000")
	cfg.Token = "secret"
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	c.http.Transport = srv
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var queryTestSchema = arrow.NewSchema([]arrow.Field{
	{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// queryBatch builds a batch of (a, b) rows; an empty b is null
func queryBatch(mem memory.Allocator, a []int32, b []string) arrow.Record {
	rb := array.NewRecordBuilder(mem, queryTestSchema)
	defer rb.Release()

	rb.Field(0).(*array.Int32Builder).AppendValues(a, nil)
	sb := rb.Field(1).(*array.StringBuilder)
	for _, v := range b {
		if v == "" {
			sb.AppendNull()
			continue
		}
		sb.Append(v)
	}
	return rb.NewRecord()
}

// flightServer serves batches for every DoGet and records what it received
type flightServer struct {
	flight.BaseFlightServer

	token   string
	batches func(mem memory.Allocator) []arrow.Record

	mu      sync.Mutex
	tickets [][]byte
	auth    []string
}

func (s *flightServer) DoGet(tkt *flight.Ticket, fs flight.FlightService_DoGetServer) error {
	md, _ := metadata.FromIncomingContext(fs.Context())
	var auth string
	if v := md.Get("authorization"); len(v) > 0 {
		auth = v[0]
	}

	s.mu.Lock()
	s.tickets = append(s.tickets, append([]byte(nil), tkt.GetTicket()...))
	s.auth = append(s.auth, auth)
	s.mu.Unlock()

	if s.token != "" && auth != "Bearer "+s.token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}

	mem := memory.NewGoAllocator()
	recs := s.batches(mem)
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	w := flight.NewRecordWriter(fs, ipc.WithSchema(queryTestSchema), ipc.WithAllocator(mem))
	defer w.Close()
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *flightServer) lastTicket() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tickets) == 0 {
		return nil
	}
	return s.tickets[len(s.tickets)-1]
}

func (s *flightServer) lastAuth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.auth) == 0 {
		return ""
	}
	return s.auth[len(s.auth)-1]
}

// startFlightServer serves impl on a loopback port and returns a client for it
func startFlightServer(t *testing.T, impl *flightServer, token string) *Client {
	t.Helper()

	srv := flight.NewServerWithMiddleware(nil)
	require.NoError(t, srv.Init("127.0.0.1:0"))
	srv.RegisterFlightService(impl)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Shutdown)

	cfg := DefaultConfig("http://" + srv.Addr().String())
	cfg.Token = token
	c, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
