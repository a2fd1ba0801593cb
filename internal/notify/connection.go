package notify

import (
	"sync"

	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
)

// sendBuffer is the per-connection queue depth. A connection that falls this
// far behind is dropped rather than allowed to block the mutation path.
const sendBuffer = 32

// Connection is one live, ephemeral subscriber. Identity is fixed at connect
// time: a role or country change requires a reconnect to pick up new scoping.
type Connection struct {
	UserID  id.UserID
	Role    id.Role
	Country id.Country

	// Agent is the browser family recorded at connect time, for log lines only.
	Agent string

	send      chan models.Event
	closeOnce sync.Once
}

// NewConnection builds an unregistered connection for the given identity.
func NewConnection(userID id.UserID, role id.Role, country id.Country, agent string) *Connection {
	return &Connection{
		UserID:  userID,
		Role:    role,
		Country: country,
		Agent:   agent,
		send:    make(chan models.Event, sendBuffer),
	}
}

// Events exposes the connection's FIFO event stream. The transport's write
// pump drains it; the channel closes when the connection is closed.
func (c *Connection) Events() <-chan models.Event {
	return c.send
}

// trySend enqueues without blocking. Reports false when the buffer is full,
// which marks the connection as too slow to keep.
func (c *Connection) trySend(event models.Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// close makes the write pump exit. Safe to call more than once.
func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
