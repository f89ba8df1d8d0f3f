package draftstore

import (
	"context"
	"sync"
	"time"

	"almoheat/internal/ledger"

	"github.com/google/uuid"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps drafts in process memory. It is used when Redis is
// disabled and in tests. Entries are stored encoded so callers never share
// a draft with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]memoryEntry
	claims  map[uuid.UUID]time.Time // zero time: never expires
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store whose entries expire after ttl. A ttl of 0
// keeps drafts until they are deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]memoryEntry),
		claims:  make(map[uuid.UUID]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, draft *ledger.Draft) error {
	data, err := encode(draft)
	if err != nil {
		return err
	}
	entry := memoryEntry{data: data}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[draft.ID] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*ledger.Draft, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(entry) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return decode(entry.data)
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || s.expired(entry) {
		delete(s.entries, id)
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimHeld(id) {
		return false, nil
	}
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}
	s.claims[id] = expiresAt
	return true, nil
}

func (s *MemoryStore) Claimed(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimHeld(id), nil
}

func (s *MemoryStore) Release(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, id)
	return nil
}

// claimHeld drops an expired claim. Callers hold mu.
func (s *MemoryStore) claimHeld(id uuid.UUID) bool {
	expiresAt, ok := s.claims[id]
	if !ok {
		return false
	}
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		delete(s.claims, id)
		return false
	}
	return true
}

// Len reports the number of stored drafts, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}

var _ Store = (*MemoryStore)(nil)
