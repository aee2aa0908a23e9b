// ABOUTME: Static access-token store for the MCP server.
// ABOUTME: Tokens come from configuration and map to a principal plus capabilities.

package mcp

import "sync"

// TokenStore maps static access tokens to their principal and capabilities.
// Entries are loaded from configuration at startup; the store stays safe for
// concurrent lookups.
type TokenStore struct {
	mu      sync.RWMutex
	entries map[string]tokenEntry
}

type tokenEntry struct {
	principal    string
	capabilities []string
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{entries: make(map[string]tokenEntry)}
}

// Add registers a token for the given principal and capabilities.
func (s *TokenStore) Add(token, principal string, capabilities []string) {
	caps := make([]string, len(capabilities))
	copy(caps, capabilities)

	s.mu.Lock()
	s.entries[token] = tokenEntry{principal: principal, capabilities: caps}
	s.mu.Unlock()
}

// Lookup resolves a token to its principal and capabilities.
func (s *TokenStore) Lookup(token string) (principal string, capabilities []string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[token]
	if !ok {
		return "", nil, false
	}

	caps := make([]string, len(entry.capabilities))
	copy(caps, entry.capabilities)
	return entry.principal, caps, true
}

// Remove invalidates a token.
func (s *TokenStore) Remove(token string) {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
}

// Count returns the number of registered tokens.
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
