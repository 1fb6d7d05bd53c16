package network

import "sync"

// DedupCache is a bounded record of recently seen gossip fingerprints.
// Once capacity is reached the least-recently-inserted fingerprint is
// evicted, so a fingerprint can be forwarded again after falling off the
// horizon.
type DedupCache struct {
	capacity int
	present  map[string]struct{}
	order    []string // insertion order, oldest first
	mu       sync.Mutex
}

// NewDedupCache creates a dedup cache holding at most capacity fingerprints
func NewDedupCache(capacity int) *DedupCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &DedupCache{
		capacity: capacity,
		present:  make(map[string]struct{}, capacity),
	}
}

// Observe reports whether a fingerprint was already in the cache and, if
// not, inserts it. Check and insert are one atomic step so concurrent
// receivers of the same message agree on a single first sighting.
func (c *DedupCache) Observe(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.present[fingerprint]; seen {
		return true
	}

	c.present[fingerprint] = struct{}{}
	c.order = append(c.order, fingerprint)

	if len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.present, oldest)
	}

	return false
}

// Len returns the number of fingerprints currently cached
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
