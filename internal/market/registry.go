package market

import (
	"sort"
	"sync"
)

// subscription is one desired pair.
type subscription struct {
	count int
	gen   uint64
}

// Registry is the reference-counted set of desired pairs.
type Registry struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	nextGen uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*subscription)}
}

// Acquire adds one reference to pair. first is true when the pair was not
// desired before; gen is the pair's current fetch generation.
func (r *Registry) Acquire(pair string) (first bool, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[pair]
	if !ok {
		r.nextGen++
		s = &subscription{gen: r.nextGen}
		r.subs[pair] = s
		first = true
	}
	s.count++

	return first, s.gen
}

// Release drops one reference. last is true when the count reached zero and
// the pair was removed. Releasing an unknown pair is a no-op.
func (r *Registry) Release(pair string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[pair]
	if !ok {
		return false
	}

	s.count--
	if s.count > 0 {
		return false
	}

	delete(r.subs, pair)
	return true
}

// Has reports whether pair is desired.
func (r *Registry) Has(pair string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[pair]
	return ok
}

// Count returns the number of references to pair.
func (r *Registry) Count(pair string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.subs[pair]; ok {
		return s.count
	}
	return 0
}

// Generation returns the fetch generation of a desired pair.
func (r *Registry) Generation(pair string) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[pair]
	if !ok {
		return 0, false
	}
	return s.gen, true
}

// Current reports whether gen is still the live generation for pair.
func (r *Registry) Current(pair string, gen uint64) bool {
	cur, ok := r.Generation(pair)
	return ok && cur == gen
}

// Pairs returns the desired pairs in sorted order.
func (r *Registry) Pairs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pairs := make([]string, 0, len(r.subs))
	for p := range r.subs {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

// Len returns the number of desired pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
