package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	cursor    Cursor
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]memoryEntry
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[int64]memoryEntry)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID int64) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, userID)
		return nil, ErrNoSession
	}
	cursor := entry.cursor
	cursor.ItemIDs = append([]uint64(nil), entry.cursor.ItemIDs...)
	return &cursor, nil
}

// Put implements Store and refreshes the expiry.
func (s *MemoryStore) Put(_ context.Context, userID int64, cursor *Cursor) error {
	if cursor == nil {
		return nil
	}
	stored := *cursor
	stored.ItemIDs = append([]uint64(nil), cursor.ItemIDs...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = memoryEntry{cursor: stored, expiresAt: s.now().Add(s.ttl)}
	s.pruneLocked()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func (s *MemoryStore) pruneLocked() {
	now := s.now()
	for userID, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, userID)
		}
	}
}
