package poller

import (
	"sync"

	"github.com/dockwatch-io/dockwatch/internal/engine"
)

// Store holds the freshest snapshot per node. Readers get whatever the
// last completed poll produced; writers only ever replace a snapshot
// with a strictly fresher one, so overlapping polls cannot roll a node
// back in time.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*engine.Snapshot
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{snaps: make(map[string]*engine.Snapshot)}
}

// Snapshot returns the current snapshot for a node, or false when no
// poll has completed for it yet.
func (s *Store) Snapshot(nodeID string) (*engine.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[nodeID]
	return snap, ok
}

// put installs a snapshot unless a fresher one is already present.
func (s *Store) put(snap *engine.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.snaps[snap.NodeID]; ok && cur.FetchedAt.After(snap.FetchedAt) {
		return
	}
	s.snaps[snap.NodeID] = snap
}

// drop removes a node's snapshot, used when a node leaves the
// configuration.
func (s *Store) drop(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, nodeID)
}
