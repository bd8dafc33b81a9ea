package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Metrics holds all arcclient counters for Prometheus export
type Metrics struct {
	startTime time.Time

	// Query metrics
	queriesTotal  atomic.Int64
	queriesFailed atomic.Int64

	// Result stream metrics
	batchesReceived     atomic.Int64
	rowsDecoded         atomic.Int64
	itemsPublished      atomic.Int64
	fallbackValues      atomic.Int64
	streamsCompleted    atomic.Int64
	streamsFailed       atomic.Int64
	streamsCancelled    atomic.Int64
	decodeLatencySum    atomic.Int64 // microseconds
	decodeLatencyCount  atomic.Int64
	decodeLatencyBucket [6]atomic.Int64

	// Line protocol metrics
	pointsEncoded atomic.Int64
	pointsSkipped atomic.Int64

	// Write metrics
	writesTotal        atomic.Int64
	writesSuccess      atomic.Int64
	writesFailed       atomic.Int64
	writesUnauthorized atomic.Int64
	writesRejected     atomic.Int64
	writeBytesRaw      atomic.Int64
	writeBytesSent     atomic.Int64

	logger zerolog.Logger
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			startTime: time.Now(),
			logger:    zerolog.Nop(),
		}
	})
	return instance
}

// Init initializes the metrics with a logger
func Init(logger zerolog.Logger) *Metrics {
	m := Get()
	m.logger = logger.With().Str("component", "metrics").Logger()
	m.logger.Debug().Msg("Metrics collector initialized")
	return m
}

// Query Metrics
func (m *Metrics) IncQueries()       { m.queriesTotal.Add(1) }
func (m *Metrics) IncQueriesFailed() { m.queriesFailed.Add(1) }

// Result Stream Metrics
func (m *Metrics) IncBatchesReceived()          { m.batchesReceived.Add(1) }
func (m *Metrics) IncRowsDecoded(count int64)   { m.rowsDecoded.Add(count) }
func (m *Metrics) IncItemsPublished()           { m.itemsPublished.Add(1) }
func (m *Metrics) IncFallbackValues(count int64) { m.fallbackValues.Add(count) }
func (m *Metrics) IncStreamsCompleted()         { m.streamsCompleted.Add(1) }
func (m *Metrics) IncStreamsFailed()            { m.streamsFailed.Add(1) }
func (m *Metrics) IncStreamsCancelled()         { m.streamsCancelled.Add(1) }

// RecordDecodeLatency records the time spent serializing one batch
func (m *Metrics) RecordDecodeLatency(d time.Duration) {
	micros := d.Microseconds()
	m.decodeLatencySum.Add(micros)
	m.decodeLatencyCount.Add(1)
	m.decodeLatencyBucket[decodeBucket(micros)].Add(1)
}

// Buckets: 100us, 1ms, 10ms, 100ms, 1s, +Inf
var decodeBucketLabels = [6]string{"0.0001", "0.001", "0.01", "0.1", "1", "+Inf"}

func decodeBucket(micros int64) int {
	switch {
	case micros <= 100:
		return 0
	case micros <= 1000:
		return 1
	case micros <= 10000:
		return 2
	case micros <= 100000:
		return 3
	case micros <= 1000000:
		return 4
	default:
		return 5
	}
}

// Line Protocol Metrics
func (m *Metrics) IncPointsEncoded(count int64) { m.pointsEncoded.Add(count) }
func (m *Metrics) IncPointsSkipped(count int64) { m.pointsSkipped.Add(count) }

// Write Metrics
func (m *Metrics) IncWrites()                   { m.writesTotal.Add(1) }
func (m *Metrics) IncWritesSuccess()            { m.writesSuccess.Add(1) }
func (m *Metrics) IncWritesFailed()             { m.writesFailed.Add(1) }
func (m *Metrics) IncWritesUnauthorized()       { m.writesUnauthorized.Add(1) }
func (m *Metrics) IncWritesRejected()           { m.writesRejected.Add(1) }
func (m *Metrics) IncWriteBytesRaw(bytes int64) { m.writeBytesRaw.Add(bytes) }
func (m *Metrics) IncWriteBytesSent(bytes int64) { m.writeBytesSent.Add(bytes) }

// Snapshot returns all metrics as a map
func (m *Metrics) Snapshot() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		// Process info
		"uptime_seconds": time.Since(m.startTime).Seconds(),
		"goroutines":     runtime.NumGoroutine(),
		"gomaxprocs":     runtime.GOMAXPROCS(0),

		"memory_alloc_bytes":      memStats.Alloc,
		"memory_heap_alloc_bytes": memStats.HeapAlloc,

		// Query
		"queries_total":  m.queriesTotal.Load(),
		"queries_failed": m.queriesFailed.Load(),

		// Stream
		"stream_batches_received":  m.batchesReceived.Load(),
		"stream_rows_decoded":      m.rowsDecoded.Load(),
		"stream_items_published":   m.itemsPublished.Load(),
		"stream_fallback_values":   m.fallbackValues.Load(),
		"streams_completed":        m.streamsCompleted.Load(),
		"streams_failed":           m.streamsFailed.Load(),
		"streams_cancelled":        m.streamsCancelled.Load(),
		"decode_latency_sum_us":    m.decodeLatencySum.Load(),
		"decode_latency_count":     m.decodeLatencyCount.Load(),

		// Line protocol
		"lineprotocol_points_encoded": m.pointsEncoded.Load(),
		"lineprotocol_points_skipped": m.pointsSkipped.Load(),

		// Write
		"writes_total":        m.writesTotal.Load(),
		"writes_success":      m.writesSuccess.Load(),
		"writes_failed":       m.writesFailed.Load(),
		"writes_unauthorized": m.writesUnauthorized.Load(),
		"writes_rejected":     m.writesRejected.Load(),
		"write_bytes_raw":     m.writeBytesRaw.Load(),
		"write_bytes_sent":    m.writeBytesSent.Load(),
	}
}

// PrometheusFormat returns metrics in Prometheus text exposition format
func (m *Metrics) PrometheusFormat() string {
	var b []byte
	b = appendCounter(b, "arcclient_uptime_seconds", "gauge", "Time since the client started", time.Since(m.startTime).Seconds())
	b = appendCounter(b, "arcclient_goroutines", "gauge", "Number of goroutines", float64(runtime.NumGoroutine()))

	b = appendCounter(b, "arcclient_queries_total", "counter", "Total queries submitted", float64(m.queriesTotal.Load()))
	b = appendCounter(b, "arcclient_queries_failed_total", "counter", "Queries that failed before streaming", float64(m.queriesFailed.Load()))

	b = appendCounter(b, "arcclient_stream_batches_total", "counter", "Record batches received", float64(m.batchesReceived.Load()))
	b = appendCounter(b, "arcclient_stream_rows_decoded_total", "counter", "Rows decoded from record batches", float64(m.rowsDecoded.Load()))
	b = appendCounter(b, "arcclient_stream_items_published_total", "counter", "Items delivered to consumers", float64(m.itemsPublished.Load()))
	b = appendCounter(b, "arcclient_stream_fallback_values_total", "counter", "Cells decoded as unsupported type", float64(m.fallbackValues.Load()))
	b = appendCounter(b, "arcclient_streams_completed_total", "counter", "Streams that completed", float64(m.streamsCompleted.Load()))
	b = appendCounter(b, "arcclient_streams_failed_total", "counter", "Streams that failed", float64(m.streamsFailed.Load()))
	b = appendCounter(b, "arcclient_streams_cancelled_total", "counter", "Streams closed by the consumer", float64(m.streamsCancelled.Load()))

	// Decode latency histogram
	b = append(b, "# HELP arcclient_decode_latency_seconds Batch decode latency\n"...)
	b = append(b, "# TYPE arcclient_decode_latency_seconds histogram\n"...)
	var cumulative int64
	for i, label := range decodeBucketLabels {
		cumulative += m.decodeLatencyBucket[i].Load()
		b = appendMetricWithLabel(b, "arcclient_decode_latency_seconds_bucket", "le", label, float64(cumulative))
	}
	b = appendMetric(b, "arcclient_decode_latency_seconds_sum", float64(m.decodeLatencySum.Load())/1000000.0)
	b = appendMetric(b, "arcclient_decode_latency_seconds_count", float64(m.decodeLatencyCount.Load()))

	b = appendCounter(b, "arcclient_lineprotocol_points_encoded_total", "counter", "Points encoded to line protocol", float64(m.pointsEncoded.Load()))
	b = appendCounter(b, "arcclient_lineprotocol_points_skipped_total", "counter", "Points with nothing to encode", float64(m.pointsSkipped.Load()))

	b = appendCounter(b, "arcclient_writes_total", "counter", "Total write requests", float64(m.writesTotal.Load()))
	b = appendCounter(b, "arcclient_writes_success_total", "counter", "Successful write requests", float64(m.writesSuccess.Load()))
	b = appendCounter(b, "arcclient_writes_failed_total", "counter", "Failed write requests", float64(m.writesFailed.Load()))
	b = appendCounter(b, "arcclient_writes_unauthorized_total", "counter", "Write requests rejected with 401", float64(m.writesUnauthorized.Load()))
	b = appendCounter(b, "arcclient_writes_rejected_total", "counter", "Write requests rejected by the open circuit breaker", float64(m.writesRejected.Load()))
	b = appendCounter(b, "arcclient_write_bytes_raw_total", "counter", "Line protocol bytes before compression", float64(m.writeBytesRaw.Load()))
	b = appendCounter(b, "arcclient_write_bytes_sent_total", "counter", "Request body bytes sent", float64(m.writeBytesSent.Load()))

	return string(b)
}

// Helper functions for Prometheus format
func appendCounter(b []byte, name, typ, help string, value float64) []byte {
	b = append(b, "# HELP "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, help...)
	b = append(b, '\n')
	b = append(b, "# TYPE "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, typ...)
	b = append(b, '\n')
	return appendMetric(b, name, value)
}

func appendMetric(b []byte, name string, value float64) []byte {
	b = append(b, name...)
	b = append(b, ' ')
	b = appendFloat(b, value)
	b = append(b, '\n')
	return b
}

func appendMetricWithLabel(b []byte, name, labelName, labelValue string, value float64) []byte {
	b = append(b, name...)
	b = append(b, '{')
	b = append(b, labelName...)
	b = append(b, '=', '"')
	b = append(b, labelValue...)
	b = append(b, '"', '}', ' ')
	b = appendFloat(b, value)
	b = append(b, '\n')
	return b
}

func appendFloat(b []byte, v float64) []byte {
	if v == float64(int64(v)) {
		return appendInt(b, int64(v))
	}
	// Up to 6 decimal places
	intPart := int64(v)
	fracPart := int64((v - float64(intPart)) * 1000000)
	if fracPart < 0 {
		fracPart = -fracPart
	}
	b = appendInt(b, intPart)
	b = append(b, '.')
	for pad := int64(100000); pad > 1 && fracPart < pad; pad /= 10 {
		b = append(b, '0')
	}
	return appendInt(b, fracPart)
}

func appendInt(b []byte, v int64) []byte {
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	if v == 0 {
		return append(b, '0')
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, digits[i:]...)
}
