package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// defaultProposerCacheSize covers a handful of concurrent shuffling
// decisions; one entry per (shuffling-decision root, slot) pair.
const defaultProposerCacheSize = 4096

type proposerKey struct {
	decisionRoot primitives.Root
	slot         primitives.Slot
}

// ProposerCache is the production verification.BeaconProposerCache: an LRU
// of already-resolved (shuffling-decision root, slot) -> proposer index
// pairs, so a run of blocks sharing a decision root never repeats the
// shuffling computation needed to recompute the proposer index for every
// gossiped block at the same slot.
type ProposerCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// NewProposerCache builds an empty proposer-shuffling cache.
func NewProposerCache() *ProposerCache {
	c, err := lru.New(defaultProposerCacheSize)
	if err != nil {
		panic(err)
	}
	return &ProposerCache{lru: c}
}

// Get satisfies verification.BeaconProposerCache.
func (p *ProposerCache) Get(shufflingDecisionRoot primitives.Root, slot primitives.Slot) (primitives.ValidatorIndex, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.lru.Get(proposerKey{shufflingDecisionRoot, slot})
	if !ok {
		return 0, false
	}
	return v.(primitives.ValidatorIndex), true
}

// Put satisfies verification.BeaconProposerCache. The critical section is a
// single map insert, short enough not to need its own try-lock discipline.
func (p *ProposerCache) Put(shufflingDecisionRoot primitives.Root, slot primitives.Slot, proposer primitives.ValidatorIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.Add(proposerKey{shufflingDecisionRoot, slot}, proposer)
}
