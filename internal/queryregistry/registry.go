package queryregistry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueryStatus represents the lifecycle state of a tracked query.
type QueryStatus string

const (
	StatusRunning   QueryStatus = "running"
	StatusCompleted QueryStatus = "completed"
	StatusCancelled QueryStatus = "cancelled"
	StatusFailed    QueryStatus = "failed"
)

// TrackedQuery holds the metadata of a query issued by this client.
type TrackedQuery struct {
	ID         string      `json:"id"`
	Database   string      `json:"database"`
	Query      string      `json:"query"`
	QueryType  string      `json:"query_type"`
	Serializer string      `json:"serializer"`
	Status     QueryStatus `json:"status"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	DurationMs float64     `json:"duration_ms,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// activeEntry stores the tracked query plus its cancel func.
type activeEntry struct {
	query  *TrackedQuery
	cancel context.CancelFunc
}

// DefaultHistorySize is the number of finished queries kept
const DefaultHistorySize = 100

// Registry tracks open result streams and recently finished ones.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]*activeEntry
	history  []*TrackedQuery // Ring buffer
	histSize int
	histHead int // Next write position
	histLen  int
	logger   zerolog.Logger
}

// NewRegistry creates a registry keeping historySize finished queries
// (DefaultHistorySize when not positive).
func NewRegistry(historySize int, logger zerolog.Logger) *Registry {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Registry{
		active:   make(map[string]*activeEntry),
		history:  make([]*TrackedQuery, historySize),
		histSize: historySize,
		logger:   logger.With().Str("component", "query-registry").Logger(),
	}
}

// Register records a new running query. The returned context is derived
// from parentCtx and is cancelled by Cancel or CancelAll.
func (r *Registry) Register(parentCtx context.Context, database, query, queryType, serializer string) (string, context.Context) {
	queryID := uuid.New().String()[:12]
	ctx, cancel := context.WithCancel(parentCtx)

	tq := &TrackedQuery{
		ID:         queryID,
		Database:   database,
		Query:      query,
		QueryType:  queryType,
		Serializer: serializer,
		Status:     StatusRunning,
		StartTime:  time.Now(),
	}

	r.mu.Lock()
	r.active[queryID] = &activeEntry{query: tq, cancel: cancel}
	r.mu.Unlock()

	r.logger.Debug().
		Str("query_id", queryID).
		Str("database", database).
		Str("serializer", serializer).
		Msg("Query registered")

	return queryID, ctx
}

// Complete marks a query as completed and moves it to history.
func (r *Registry) Complete(queryID string) {
	r.finish(queryID, StatusCompleted, "")
}

// Fail marks a query as failed and moves it to history.
func (r *Registry) Fail(queryID string, errMsg string) {
	r.finish(queryID, StatusFailed, errMsg)
}

func (r *Registry) finish(queryID string, status QueryStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.active[queryID]
	if !ok {
		return
	}
	r.retire(queryID, entry, status, errMsg)
}

// retire releases the entry's context and moves it to history. Must be
// called with mu held.
func (r *Registry) retire(queryID string, entry *activeEntry, status QueryStatus, errMsg string) {
	now := time.Now()
	entry.query.Status = status
	entry.query.EndTime = &now
	entry.query.DurationMs = float64(now.Sub(entry.query.StartTime).Milliseconds())
	entry.query.Error = errMsg
	entry.cancel()

	r.addToHistory(entry.query)
	delete(r.active, queryID)
}

// Cancel cancels a running query by ID. Returns true if the query was found and cancelled.
func (r *Registry) Cancel(queryID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.active[queryID]
	if !ok {
		return false
	}
	r.retire(queryID, entry, StatusCancelled, "")

	r.logger.Info().
		Str("query_id", queryID).
		Float64("duration_ms", entry.query.DurationMs).
		Msg("Query cancelled")
	return true
}

// CancelAll cancels every running query and returns how many there were
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.active)
	for id, entry := range r.active {
		r.retire(id, entry, StatusCancelled, "")
	}
	return n
}

// GetActive returns a snapshot of all active queries.
func (r *Registry) GetActive() []*TrackedQuery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*TrackedQuery, 0, len(r.active))
	now := time.Now()
	for _, entry := range r.active {
		q := *entry.query // copy
		q.DurationMs = float64(now.Sub(q.StartTime).Milliseconds())
		result = append(result, &q)
	}
	return result
}

// GetHistory returns the most recently finished queries, newest first.
func (r *Registry) GetHistory(limit int) []*TrackedQuery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.histLen
	if limit > 0 && limit < count {
		count = limit
	}

	result := make([]*TrackedQuery, 0, count)
	for i := 0; i < count; i++ {
		idx := (r.histHead - 1 - i + r.histSize) % r.histSize
		if r.history[idx] != nil {
			q := *r.history[idx]
			result = append(result, &q)
		}
	}
	return result
}

// GetQuery returns a specific query by ID (checks active then history).
func (r *Registry) GetQuery(queryID string) *TrackedQuery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.active[queryID]; ok {
		q := *entry.query
		q.DurationMs = float64(time.Since(q.StartTime).Milliseconds())
		return &q
	}

	for i := 0; i < r.histLen; i++ {
		idx := (r.histHead - 1 - i + r.histSize) % r.histSize
		if r.history[idx] != nil && r.history[idx].ID == queryID {
			q := *r.history[idx]
			return &q
		}
	}
	return nil
}

// ActiveCount returns the number of currently running queries.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// HistoryLen returns the number of queries in the history buffer.
func (r *Registry) HistoryLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histLen
}

// addToHistory appends a query to the ring buffer. Must be called with mu held.
func (r *Registry) addToHistory(q *TrackedQuery) {
	r.history[r.histHead] = q
	r.histHead = (r.histHead + 1) % r.histSize
	if r.histLen < r.histSize {
		r.histLen++
	}
}
