package dispatcher

import (
	"sync"

	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// DuplicateCache gates concurrent imports of the same block. The handle
// returned by CheckAndInsert must be
// released (by calling it) once the importer is done, clearing the slot for
// a later import of the same root.
type DuplicateCache struct {
	mu       sync.Mutex
	inFlight map[primitives.Root]struct{}
}

// NewDuplicateCache builds an empty duplicate cache.
func NewDuplicateCache() *DuplicateCache {
	return &DuplicateCache{inFlight: make(map[primitives.Root]struct{})}
}

// CheckAndInsert attempts to claim root for import. ok is false when another
// importer already holds the slot; the caller must requeue rather than
// process the block itself. When ok is true, release must be called exactly
// once when the import finishes (successfully or not).
func (c *DuplicateCache) CheckAndInsert(root primitives.Root) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[root]; busy {
		return nil, false
	}
	c.inFlight[root] = struct{}{}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.inFlight, root)
	}, true
}
