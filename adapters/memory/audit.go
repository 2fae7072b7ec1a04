// Package memory provides in-memory adapter implementations for testing and
// development. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/AshkanYarmoradi/go-herald/adapters"
)

// Ensure interface compliance at compile time
var (
	_ adapters.AuditStore    = (*AuditStore)(nil)
	_ adapters.HealthChecker = (*AuditStore)(nil)
)

// AuditStore keeps audit records in memory.
type AuditStore struct {
	mu       sync.RWMutex
	records  []*adapters.AuditRecord
	capacity int
	closed   bool
}

// AuditStoreOption configures an AuditStore
type AuditStoreOption func(*AuditStore)

// WithCapacity bounds the number of records kept. The oldest records are
// dropped first. Zero keeps everything.
func WithCapacity(n int) AuditStoreOption {
	return func(s *AuditStore) {
		s.capacity = n
	}
}

// NewAuditStore creates a new in-memory AuditStore.
func NewAuditStore(opts ...AuditStoreOption) *AuditStore {
	s := &AuditStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores a copy of the record.
func (s *AuditStore) Record(ctx context.Context, record *adapters.AuditRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return adapters.ErrAdapterClosed
	}

	s.records = append(s.records, record.Copy())
	if s.capacity > 0 && len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	return nil
}

// Query returns copies of the matching records, oldest first.
func (s *AuditStore) Query(ctx context.Context, filter adapters.AuditFilter) ([]*adapters.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, adapters.ErrAdapterClosed
	}

	limit := adapters.DefaultLimit(filter.Limit, adapters.DefaultAuditLimit)
	result := make([]*adapters.AuditRecord, 0)
	for _, r := range s.records {
		if filter.Matches(r) {
			result = append(result, r.Copy())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of matching records.
func (s *AuditStore) Count(ctx context.Context, filter adapters.AuditFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, adapters.ErrAdapterClosed
	}

	var n int64
	for _, r := range s.records {
		if filter.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records.
func (s *AuditStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

// Ping reports whether the store is open.
func (s *AuditStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return adapters.ErrAdapterClosed
	}
	return nil
}

// Close closes the store. It is safe to call Close multiple times.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
