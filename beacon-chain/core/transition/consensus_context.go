package transition

import (
	"sync"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// ConsensusContext is the per-block accumulator threaded through every stage
// so later stages never recompute what an earlier one already proved.
// It is built once per block (or, for a
// chain segment, once per block in the segment) and becomes immutable after
// the execution-pending stage constructs its ExecutionPendingBlock.
type ConsensusContext struct {
	mu sync.Mutex

	slot          primitives.Slot
	blockRoot     *primitives.Root
	proposerIndex *primitives.ValidatorIndex

	// indexedAttestations caches the committee-resolved form of each
	// attestation in the block body, filled as a side effect of signature
	// verification and reused by per_block_processing and by the
	// fork-choice attestation ingestion so neither recomputes attesting
	// indices.
	indexedAttestations []*blocks.IndexedAttestation
}

// NewConsensusContext creates a context for a block at the given slot. The
// block root and proposer index are filled in later, exactly once each.
func NewConsensusContext(slot primitives.Slot) *ConsensusContext {
	return &ConsensusContext{slot: slot}
}

// Slot returns the block's slot.
func (c *ConsensusContext) Slot() primitives.Slot { return c.slot }

// SetBlockRoot sets the current block's root. It may only be set once; a
// second distinct call with a different root is a programmer error.
func (c *ConsensusContext) SetBlockRoot(root primitives.Root) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blockRoot == nil {
		r := root
		c.blockRoot = &r
	}
}

// BlockRoot returns the block root, if set.
func (c *ConsensusContext) BlockRoot() (primitives.Root, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blockRoot == nil {
		return primitives.Root{}, false
	}
	return *c.blockRoot, true
}

// SetProposerIndex sets the cached proposer index. Like the block root, it is
// set once: the cached proposer index must always equal the block's
// proposer index.
func (c *ConsensusContext) SetProposerIndex(idx primitives.ValidatorIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proposerIndex == nil {
		i := idx
		c.proposerIndex = &i
	}
}

// ProposerIndex returns the cached proposer index, if set.
func (c *ConsensusContext) ProposerIndex() (primitives.ValidatorIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proposerIndex == nil {
		return 0, false
	}
	return *c.proposerIndex, true
}

// SetIndexedAttestations stores the committee-resolved attestations computed
// during signature verification.
func (c *ConsensusContext) SetIndexedAttestations(atts []*blocks.IndexedAttestation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexedAttestations = atts
}

// IndexedAttestations returns the cached committee-resolved attestations, or
// nil if signature verification has not populated them yet.
func (c *ConsensusContext) IndexedAttestations() []*blocks.IndexedAttestation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexedAttestations
}
