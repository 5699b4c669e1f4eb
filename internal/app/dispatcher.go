package app

import (
	"log/slog"
	"sync"
)

// Conn is a transport connection as the dispatcher sees it. Send must not
// block; it returns false when the message could not be queued.
type Conn interface {
	ID() string
	Send(Event) bool
}

// Dispatcher fans events out to the connections subscribed to a session.
// Rooms call it from their own loop, so per-room delivery order follows the
// order of state transitions.
type Dispatcher struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		rooms:  make(map[string]map[string]Conn),
	}
}

// Subscribe attaches a connection to a session's broadcasts.
func (d *Dispatcher) Subscribe(sessionID string, conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rooms[sessionID] == nil {
		d.rooms[sessionID] = make(map[string]Conn)
	}
	d.rooms[sessionID][conn.ID()] = conn
}

// Unsubscribe detaches a connection; it reports whether it was attached.
func (d *Dispatcher) Unsubscribe(sessionID, connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	conns, ok := d.rooms[sessionID]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(d.rooms, sessionID)
	}
	return true
}

// Broadcast sends ev to every connection of a session and returns how many
// accepted it.
func (d *Dispatcher) Broadcast(sessionID string, ev Event) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	delivered := 0
	for id, conn := range d.rooms[sessionID] {
		if conn.Send(ev) {
			delivered++
			continue
		}
		d.logger.Warn("dropping event for slow or closed connection",
			"session_id", sessionID, "conn_id", id, "event", ev.Type)
	}
	return delivered
}

// SendTo delivers ev to one connection of a session.
func (d *Dispatcher) SendTo(sessionID, connID string, ev Event) bool {
	d.mu.RLock()
	conn, ok := d.rooms[sessionID][connID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Send(ev)
}

// Subscribers returns the number of connections attached to a session.
func (d *Dispatcher) Subscribers(sessionID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[sessionID])
}

// CloseRoom drops every subscription of a session.
func (d *Dispatcher) CloseRoom(sessionID string) {
	d.mu.Lock()
	delete(d.rooms, sessionID)
	d.mu.Unlock()
}
