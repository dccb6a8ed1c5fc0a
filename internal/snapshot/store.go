// Package snapshot holds the most recent telemetry snapshot and hands it from
// the sampling goroutine to the publisher.
//
// The store is a single-slot mailbox: Update overwrites, Wait consumes and
// resets to the empty sentinel. The whole value is replaced under one mutex so
// a reader never observes a partially written snapshot.
package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/starford/raido/internal/models"
)

// Stats is a point-in-time view of store counters.
type Stats struct {
	Updates     uint64 `json:"updates"`
	Invalid     uint64 `json:"invalid"`
	Overwritten uint64 `json:"overwritten"`
	Contended   uint64 `json:"contended"`
	Taken       uint64 `json:"taken"`
}

// Store is the snapshot hand-off point.
type Store struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current models.Snapshot
	pending bool
	closed  bool

	updates     atomic.Uint64
	invalid     atomic.Uint64
	overwritten atomic.Uint64
	contended   atomic.Uint64
	taken       atomic.Uint64
}

// NewStore returns a store holding the empty sentinel.
func NewStore() *Store {
	s := &Store{current: models.EmptySnapshot()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Update replaces the held snapshot. An invalid snapshot replaces it with the
// empty sentinel and does not wake the publisher. The caller hands over
// ownership of snap.AI.
func (s *Store) Update(snap models.Snapshot) {
	s.mu.Lock()
	s.replaceLocked(snap)
	s.mu.Unlock()
}

// TryUpdate is Update without waiting: if the lock is held by the publisher
// the update is dropped and false is returned.
func (s *Store) TryUpdate(snap models.Snapshot) bool {
	if !s.mu.TryLock() {
		s.contended.Add(1)
		return false
	}
	s.replaceLocked(snap)
	s.mu.Unlock()
	return true
}

func (s *Store) replaceLocked(snap models.Snapshot) {
	if snap.IsEmpty() {
		s.invalid.Add(1)
		s.current = models.EmptySnapshot()
		s.pending = false
		return
	}
	if s.pending {
		s.overwritten.Add(1)
	}
	s.updates.Add(1)
	s.current = snap
	s.pending = true
	s.cond.Broadcast()
}

// TakeAndReset returns the held snapshot and replaces it with the empty
// sentinel. Calling it twice without an Update in between yields the empty
// sentinel the second time.
func (s *Store) TakeAndReset() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked()
}

func (s *Store) takeLocked() models.Snapshot {
	snap := s.current
	s.current = models.EmptySnapshot()
	s.pending = false
	s.taken.Add(1)
	return snap
}

// Wait blocks until a new snapshot is pending or the store is closed, then
// takes and resets it. The boolean is false once the store is closed; the
// returned snapshot is then the last one held, possibly empty.
func (s *Store) Wait() (models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.pending && !s.closed {
		s.cond.Wait()
	}
	return s.takeLocked(), !s.closed
}

// Close wakes every waiter; subsequent Wait calls return immediately.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Updates:     s.updates.Load(),
		Invalid:     s.invalid.Load(),
		Overwritten: s.overwritten.Load(),
		Contended:   s.contended.Load(),
		Taken:       s.taken.Load(),
	}
}
