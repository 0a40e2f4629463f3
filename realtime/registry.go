package realtime

import (
	"sync"
)

// Registry maps authenticated user ids to their live connection. It is owned
// by the gateway alone and rebuilt empty on restart; every user shows as
// offline until they reconnect and authenticate again.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uint]*Client),
	}
}

// Register binds userID to client. A second authentication for the same user
// overwrites the previous binding: last authenticated wins, and the
// superseded connection stops receiving routed events.
func (r *Registry) Register(userID uint, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[userID] = client
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID uint) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[userID]
	return client, ok
}

// Unregister removes every binding pointing at client. A connection that was
// never registered, or whose binding was already overwritten by a later
// Register, is a no-op.
func (r *Registry) Unregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, registered := range r.clients {
		if registered == client {
			delete(r.clients, userID)
		}
	}
}

// Online reports how many users currently hold a live connection.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
