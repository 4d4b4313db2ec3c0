package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// WSTokenTTL is how long a stream token is valid
	WSTokenTTL = 30 * time.Second
	// WSTokenLength is the byte length of the token, hex encoded to twice that
	WSTokenLength = 32
)

// WSTokenStore hands out one-time tokens for the telemetry stream socket,
// since browsers cannot set headers on a WebSocket upgrade
type WSTokenStore struct {
	mu     sync.Mutex
	tokens map[string]wsTokenEntry
	now    func() time.Time
}

type wsTokenEntry struct {
	user      User
	createdAt time.Time
}

// NewWSTokenStore creates a new token store. Call Run to expire stale tokens.
func NewWSTokenStore() *WSTokenStore {
	return &WSTokenStore{
		tokens: make(map[string]wsTokenEntry),
		now:    time.Now,
	}
}

// Generate creates a new one-time token for user
func (s *WSTokenStore) Generate(user *User) (string, error) {
	b := make([]byte, WSTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	s.tokens[token] = wsTokenEntry{user: *user, createdAt: s.now()}
	s.mu.Unlock()

	return token, nil
}

// Consume validates a token and removes it. The token is spent even when expired.
func (s *WSTokenStore) Consume(token string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tokens[token]
	if !exists {
		return nil, false
	}
	delete(s.tokens, token)

	if s.now().Sub(entry.createdAt) > WSTokenTTL {
		return nil, false
	}
	user := entry.user
	return &user, true
}

// Len returns the number of outstanding tokens
func (s *WSTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Run removes expired tokens every minute until ctx is done
func (s *WSTokenStore) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *WSTokenStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, entry := range s.tokens {
		if now.Sub(entry.createdAt) > WSTokenTTL {
			delete(s.tokens, token)
		}
	}
}
