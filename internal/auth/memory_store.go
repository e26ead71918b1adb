package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps session state in-memory. It is safe for concurrent use
// and intended for development or single-instance deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
}

// NewMemorySessionStore constructs an in-memory store implementation.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]SessionRecord)}
}

// Save records the session details under the token's hash.
func (s *MemorySessionStore) Save(_ context.Context, token, userID string, expiresAt, absoluteExpiresAt time.Time) error {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[hashed] = SessionRecord{UserID: userID, ExpiresAt: expiresAt, AbsoluteExpiresAt: absoluteExpiresAt}
	s.mu.Unlock()
	return nil
}

// Get retrieves the session record for the provided token.
func (s *MemorySessionStore) Get(_ context.Context, token string) (SessionRecord, bool, error) {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	s.mu.RLock()
	record, ok := s.sessions[hashed]
	s.mu.RUnlock()
	if !ok {
		return SessionRecord{}, false, nil
	}
	record.Token = token
	return record, true, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, hashed)
	s.mu.Unlock()
	return nil
}

// PurgeExpired removes sessions past their idle or absolute expiry.
func (s *MemorySessionStore) PurgeExpired(_ context.Context, now time.Time) error {
	s.mu.Lock()
	for hashed, record := range s.sessions {
		if now.After(record.ExpiresAt) || (!record.AbsoluteExpiresAt.IsZero() && now.After(record.AbsoluteExpiresAt)) {
			delete(s.sessions, hashed)
		}
	}
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are held.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping always reports success for the in-memory session store.
func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}
