package storage

import (
	"container/heap"
	"sync"
	"time"
)

// registration is a pending expiration for one (namespace, key) pair,
// stamped with the generation of the entry it was created for.
type registration struct {
	ns         string
	key        string
	generation uint64
	deadline   time.Time
	index      int
}

type regKey struct {
	ns  string
	key string
}

// expiryHeap orders registrations by deadline
type expiryHeap []*registration

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x interface{}) {
	reg := x.(*registration)
	reg.index = len(*h)
	*h = append(*h, reg)
}

func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	reg := old[n-1]
	old[n-1] = nil
	reg.index = -1
	*h = old[:n-1]
	return reg
}

// registry holds at most one registration per (namespace, key)
type registry struct {
	mu    sync.Mutex
	heap  expiryHeap
	index map[regKey]*registration
}

func newRegistry() *registry {
	return &registry{
		index: make(map[regKey]*registration),
	}
}

// track registers or re-registers a key for expiration
func (r *registry) track(ns, key string, generation uint64, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := regKey{ns: ns, key: key}
	if reg, ok := r.index[k]; ok {
		reg.generation = generation
		reg.deadline = deadline
		heap.Fix(&r.heap, reg.index)
		return
	}

	reg := &registration{ns: ns, key: key, generation: generation, deadline: deadline}
	heap.Push(&r.heap, reg)
	r.index[k] = reg
}

// untrack drops the registration for a key, if any
func (r *registry) untrack(ns, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(regKey{ns: ns, key: key})
}

// untrackKeys drops the registrations for several keys of one namespace
func (r *registry) untrackKeys(ns string, keys []string) {
	if len(keys) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.remove(regKey{ns: ns, key: key})
	}
}

func (r *registry) remove(k regKey) {
	reg, ok := r.index[k]
	if !ok {
		return
	}
	heap.Remove(&r.heap, reg.index)
	delete(r.index, k)
}

// popDue retires every registration whose deadline is before now
func (r *registry) popDue(now time.Time) []registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []registration
	for len(r.heap) > 0 && now.After(r.heap[0].deadline) {
		reg := heap.Pop(&r.heap).(*registration)
		delete(r.index, regKey{ns: reg.ns, key: reg.key})
		due = append(due, *reg)
	}
	return due
}

// Len returns the number of pending registrations
func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.heap)
}

// Sweep evicts every entry whose TTL has elapsed and returns how many were
// removed. A registration only evicts the entry generation it was created
// for, so keys rewritten since then are left alone.
func (s *MemoryStorage) Sweep() int {
	now := s.now()

	// Registry lock is released before any shard lock is taken;
	// Set acquires them in the opposite order.
	due := s.expiry.popDue(now)

	evicted := 0
	for _, reg := range due {
		if s.evict(reg, now) {
			evicted++
		}
	}
	return evicted
}

// evict removes the entry named by reg if it is still the generation reg was made for
func (s *MemoryStorage) evict(reg registration, now time.Time) bool {
	sh := s.shardFor(reg.ns, reg.key, false)
	if sh == nil {
		return false
	}

	sh.mu.Lock()
	entry, exists := sh.data[reg.key]
	if !exists || entry.Generation != reg.generation || !entry.ExpiredAt(now) {
		sh.mu.Unlock()
		return false
	}
	delete(sh.data, reg.key)
	sh.mu.Unlock()

	for _, observer := range s.observers {
		observer.OnKeyExpired(reg.ns, reg.key)
	}
	return true
}

// cleanupExpiredKeys runs Sweep on a ticker until Close
func (s *MemoryStorage) cleanupExpiredKeys() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.cleanupStop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
