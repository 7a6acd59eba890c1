package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/sage/pkg/models"
)

// SnapshotTTL is how long a scale reading stays current. A scale that has
// been quiet longer than this has no "latest weight".
const SnapshotTTL = 30 * time.Second

// Store holds the latest snapshot per scale with a TTL.
type Store interface {
	// Put overwrites the snapshot for a scale and resets its TTL.
	Put(ctx context.Context, scale string, snapshot models.TelemetrySnapshot, ttl time.Duration) error
	// Get returns the current snapshot, or nil when the scale has no live
	// reading.
	Get(ctx context.Context, scale string) (*models.TelemetrySnapshot, error)
}

type memoryEntry struct {
	snapshot  models.TelemetrySnapshot
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-node deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, scale string, snapshot models.TelemetrySnapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[scale] = memoryEntry{
		snapshot:  snapshot,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, scale string) (*models.TelemetrySnapshot, error) {
	s.mu.RLock()
	entry, ok := s.entries[scale]
	s.mu.RUnlock()

	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}

	snapshot := entry.snapshot
	return &snapshot, nil
}
