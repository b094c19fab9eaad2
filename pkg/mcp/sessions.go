package mcp

import "sync"

// SessionRegistry maps wizard session IDs to MCP client session IDs.
// Populated when a client opens a wizard session with listing.start.
type SessionRegistry struct {
	mu      sync.RWMutex
	clients map[string]string // wizard session → client session
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{clients: make(map[string]string)}
}

// Register associates a wizard session with the client that opened it.
func (r *SessionRegistry) Register(wizardSessionID, clientSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[wizardSessionID] = clientSessionID
}

// ClientFor returns the client session for a wizard session, if known.
func (r *SessionRegistry) ClientFor(wizardSessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.clients[wizardSessionID]
	return cid, ok
}

// Forget drops one wizard session.
func (r *SessionRegistry) Forget(wizardSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, wizardSessionID)
}

// Remove deletes every wizard session owned by a disconnected client.
func (r *SessionRegistry) Remove(clientSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for wid, cid := range r.clients {
		if cid == clientSessionID {
			delete(r.clients, wid)
		}
	}
}
