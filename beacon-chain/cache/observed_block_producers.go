package cache

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// observedProducersRetention bounds how long a (slot, proposer) entry stays
// around: long enough to span finality, short enough that a long-running
// node doesn't accumulate an unbounded set of old slots.
const observedProducersRetention = 4 * time.Hour

// ObservedBlockProducers is the production verification.ObservedBlockProducers:
// equivocation detection keyed by (slot, proposer index), backed by
// go-cache's expiring map. Every observation is
// serialized under a single mutex so the check-then-record race that would
// otherwise let two equivocating blocks both report UniqueNonSlashable can
// never happen.
type ObservedBlockProducers struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewObservedBlockProducers builds an empty observed-producers cache.
func NewObservedBlockProducers() *ObservedBlockProducers {
	return &ObservedBlockProducers{
		cache: gocache.New(observedProducersRetention, observedProducersRetention/2),
	}
}

// ObserveProposal satisfies verification.ObservedBlockProducers.
func (o *ObservedBlockProducers) ObserveProposal(root primitives.Root, header *blocks.BeaconBlockHeader) (verification.ObservationResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := observedKey(header.Slot, header.ProposerIndex)

	v, found := o.cache.Get(key)
	if !found {
		o.cache.Set(key, []primitives.Root{root}, gocache.DefaultExpiration)
		return verification.UniqueNonSlashable, nil
	}

	roots := v.([]primitives.Root)
	for _, r := range roots {
		if r == root {
			return verification.Duplicate, nil
		}
	}
	o.cache.Set(key, append(roots, root), gocache.DefaultExpiration)
	return verification.ObservedSlashable, nil
}

// HasProposerBeenObserved reports whether any block from proposer at slot has
// already been recorded, without itself recording root (used by the sync
// dispatcher's late-block requeue check, which must not mutate
// the cache while merely checking for a prior equivocation).
func (o *ObservedBlockProducers) HasProposerBeenObserved(slot primitives.Slot, proposer primitives.ValidatorIndex) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, found := o.cache.Get(observedKey(slot, proposer))
	return found
}

func observedKey(slot primitives.Slot, proposer primitives.ValidatorIndex) string {
	return fmt.Sprintf("%d/%d", slot, proposer)
}
