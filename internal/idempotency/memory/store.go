package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	savedAt  time.Time
}

// Store retains order creation responses for replaying duplicate requests.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

var _ ports.IdempotencyStore = (*Store)(nil)

// NewStore creates an in-memory idempotency store. A ttl of zero keeps keys forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{items: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.savedAt) >= s.ttl
}

// Get returns the stored response for a live key.
func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok || s.expired(e) {
		return nil, nil
	}
	response := e.response
	return &response, nil
}

// Save keeps the first response for a live key and replaces an expired one.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok && !s.expired(e) {
		return nil
	}
	s.items[key] = entry{response: response, savedAt: s.now()}
	return nil
}
