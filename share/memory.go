package share

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"practice-insights/errors"
)

// MemoryStore keeps encoded payloads in process memory. It backs the CLI
// when no Redis address is configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemoryStore returns an empty store. A non-positive ttl means
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// WithClock replaces the store's time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Save(_ context.Context, p *Payload) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{data: data, expires: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Payload, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && !s.now().Before(e.expires) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("share %s: %w", id, errors.ErrExpired)
	}
	return Decode(e.data)
}
