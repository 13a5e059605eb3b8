package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/semaphore"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// defaultSnapshotCacheSize bounds how many parent-keyed pre-processing
// snapshots stay resident. A handful of recent forks is enough; anything
// older is cheaper to reload from the store than to keep warm.
const defaultSnapshotCacheSize = 8

// SnapshotCache is the production verification.SnapshotCache: a small LRU of
// pre-processing snapshots keyed by parent root, guarded by a bounded
// try-lock so a stuck reader never stalls block processing: the cache must
// never block block processing indefinitely.
type SnapshotCache struct {
	lru     *lru.Cache
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewSnapshotCache builds a snapshot cache with the default capacity. The
// *lru.Cache constructor only errors on a non-positive size, which
// defaultSnapshotCacheSize never is.
func NewSnapshotCache() *SnapshotCache {
	c, err := lru.New(defaultSnapshotCacheSize)
	if err != nil {
		panic(err)
	}
	return &SnapshotCache{
		lru:     c,
		sem:     semaphore.NewWeighted(1),
		timeout: params.BlockProcessingCacheLockTimeout,
	}
}

// Get satisfies verification.SnapshotCache. A cached snapshot whose state has
// already advanced past upToSlot is not usable by the caller and is reported
// as a miss rather than returned stale.
func (c *SnapshotCache) Get(parentRoot primitives.Root, upToSlot primitives.Slot) (verification.PreProcessingSnapshot, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		log.WithError(err).Warn("snapshot cache lock timed out, bypassing to store")
		return verification.PreProcessingSnapshot{}, false
	}
	defer c.sem.Release(1)

	v, ok := c.lru.Get(parentRoot)
	if !ok {
		return verification.PreProcessingSnapshot{}, false
	}
	snap := v.(verification.PreProcessingSnapshot)
	if snap.PreState.Slot() > upToSlot {
		return verification.PreProcessingSnapshot{}, false
	}
	return snap, true
}

// Put records a freshly loaded parent snapshot for reuse by siblings of the
// same parent. Snapshots are always stored as shared
// (Owned == false); every reader clones before mutating.
func (c *SnapshotCache) Put(parentRoot primitives.Root, snap verification.PreProcessingSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		log.WithError(err).Warn("snapshot cache lock timed out, dropping write")
		return
	}
	defer c.sem.Release(1)

	snap.Owned = false
	c.lru.Add(parentRoot, snap)
}
