package alertstore

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campusguard/argus/internal/domain"
)

// MemoryStore is a thread-safe LRU of workflow records with optional TTL.
// Used as the Community tier alert store. When full, the least recently
// touched record is evicted and its entity reverts to the default status.
type MemoryStore struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	closed  bool

	now func() time.Time
}

type memoryEntry struct {
	rec       domain.AlertStatusRecord
	expiresAt time.Time
}

// NewMemoryStore creates an LRU store. A zero ttl keeps records until evicted.
func NewMemoryStore(maxSize int, ttl time.Duration) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryStore{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// GetStatus returns the record for an entity, or nil if none is stored.
func (s *MemoryStore) GetStatus(ctx context.Context, entityID string) (*domain.AlertStatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("alert store is closed")
	}
	return s.lookup(entityID), nil
}

// GetStatuses returns the stored records for the given entities.
func (s *MemoryStore) GetStatuses(ctx context.Context, entityIDs []string) (map[string]*domain.AlertStatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("alert store is closed")
	}

	out := make(map[string]*domain.AlertStatusRecord, len(entityIDs))
	for _, id := range entityIDs {
		if rec := s.lookup(id); rec != nil {
			out[id] = rec
		}
	}
	return out, nil
}

// lookup must be called with the lock held.
func (s *MemoryStore) lookup(entityID string) *domain.AlertStatusRecord {
	elem, ok := s.items[entityID]
	if !ok {
		return nil
	}

	entry := elem.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.removeElement(elem)
		return nil
	}

	s.order.MoveToFront(elem)
	rec := entry.rec
	return &rec
}

// SetStatus upserts the record. The last write wins.
func (s *MemoryStore) SetStatus(ctx context.Context, rec *domain.AlertStatusRecord) error {
	if rec == nil || rec.EntityID == "" {
		return fmt.Errorf("entity id is required: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("alert store is closed")
	}

	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}

	if elem, ok := s.items[rec.EntityID]; ok {
		s.order.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.rec = *rec
		entry.expiresAt = expiresAt
		return nil
	}

	elem := s.order.PushFront(&memoryEntry{rec: *rec, expiresAt: expiresAt})
	s.items[rec.EntityID] = elem

	for s.order.Len() > s.maxSize {
		s.removeElement(s.order.Back())
	}
	return nil
}

// Ping checks store health.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("alert store is closed")
	}
	return nil
}

// Close drops every record.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order = list.New()
	s.closed = true
	return nil
}

// Stats returns the number of stored records and the capacity.
func (s *MemoryStore) Stats() (size int, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), s.maxSize
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.items, elem.Value.(*memoryEntry).rec.EntityID)
}
