package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps snapshots in process. Used by tests and by local runs
// without a database; the semantics match the postgres store exactly.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Ledger]memoryEntry
}

type memoryEntry struct {
	data    []byte
	version Version
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Ledger]memoryEntry)}
}

func (s *MemoryStore) Read(ctx context.Context, ledger Ledger) ([]byte, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[ledger]
	if !ok {
		return nil, 0, nil
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, entry.version, nil
}

func (s *MemoryStore) Write(ctx context.Context, ledger Ledger, snapshot []byte, expected Version) (Version, error) {
	if !KnownLedger(ledger) {
		return 0, fmt.Errorf("unknown ledger %q", ledger)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.entries[ledger].version
	if current != expected {
		return 0, ErrVersionConflict
	}
	data := make([]byte, len(snapshot))
	copy(data, snapshot)
	next := current + 1
	s.entries[ledger] = memoryEntry{data: data, version: next}
	return next, nil
}
