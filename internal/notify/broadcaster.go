// Package notify fans committed domain events out to scoped live connections.
//
// The broadcaster owns the process-wide connection registry. It is constructed
// once and passed into handlers by reference; nothing here is ambient global
// state. Delivery is best-effort and non-blocking relative to the mutation
// that triggered it: a user with zero connections simply misses the event, and
// a connection that cannot keep up is pruned.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"citeline/internal/platform/metrics"
	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
)

// Publisher is what mutating services hand committed events to.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Broadcaster maintains per-user connection sets and applies the audience
// rules when publishing.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[id.UserID]map[*Connection]struct{}
	count       int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Broadcaster)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) { b.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		connections: make(map[id.UserID]map[*Connection]struct{}),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a live connection. A user may hold any number of concurrent
// connections (multiple tabs or devices).
func (b *Broadcaster) Register(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.connections[conn.UserID]
	if !ok {
		set = make(map[*Connection]struct{})
		b.connections[conn.UserID] = set
	}
	set[conn] = struct{}{}
	b.count++
	b.metrics.SetLiveConnections(b.count)
}

// Deregister removes a connection and closes its event stream. Idempotent.
func (b *Broadcaster) Deregister(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deregisterLocked(conn)
}

func (b *Broadcaster) deregisterLocked(conn *Connection) {
	set, ok := b.connections[conn.UserID]
	if !ok {
		return
	}
	if _, present := set[conn]; !present {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(b.connections, conn.UserID)
	}
	b.count--
	b.metrics.SetLiveConnections(b.count)
	conn.close()
}

// Publish fans the event out to every connection in its audience. Enqueueing
// is non-blocking; connections whose buffers are full are pruned. Events for
// the same submission arrive here in commit order and each connection's
// channel preserves FIFO, so no reordering happens downstream.
func (b *Broadcaster) Publish(ctx context.Context, event models.Event) {
	var pruned []*Connection

	b.mu.RLock()
	for _, set := range b.connections {
		for conn := range set {
			if !inAudience(conn, event) {
				continue
			}
			if conn.trySend(event) {
				b.metrics.IncrementEventsBroadcast()
			} else {
				b.metrics.IncrementEventsDropped()
				pruned = append(pruned, conn)
			}
		}
	}
	b.mu.RUnlock()

	if len(pruned) == 0 {
		return
	}
	b.mu.Lock()
	for _, conn := range pruned {
		b.logger.WarnContext(ctx, "pruning slow connection",
			"user_id", conn.UserID.String(),
			"agent", conn.Agent,
		)
		b.deregisterLocked(conn)
	}
	b.mu.Unlock()
}

// ConnectionCount reports the number of live connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// inAudience applies the scoping rules: admins see everything, verifiers see
// their own country, and the submitter always sees their own submissions.
func inAudience(conn *Connection, event models.Event) bool {
	if conn.UserID == event.Submission.SubmitterID {
		return true
	}
	switch conn.Role {
	case id.RoleAdmin:
		return true
	case id.RoleVerifier:
		return conn.Country == event.Submission.Country
	default:
		return false
	}
}
