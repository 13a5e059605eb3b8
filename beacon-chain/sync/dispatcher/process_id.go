package dispatcher

import "github.com/voyager-chain/beaconverify/consensus-types/primitives"

// ChainID identifies a range-sync chain within the sync manager; its
// internal structure belongs to the sync manager and is opaque here.
type ChainID uint64

// ProcessIDKind selects which ChainSegmentProcessID variant is in play.
type ProcessIDKind int

const (
	// RangeBatch: a range-syncing batch for a specific chain.
	RangeBatch ProcessIDKind = iota
	// BackSyncBatch: a backfill-syncing batch. Dispatcher.ProcessChainSegment
	// runs it through the same pipeline as RangeBatch, fork-choice import
	// included; there is no separate finalised-state verification path.
	BackSyncBatch
	// ParentLookup: the ancestor chain being fetched for a block whose
	// parent was unknown; arrives highest-slot-first and must be reversed.
	ParentLookup
)

// ChainSegmentProcessID tags a ProcessChainSegment call with which syncing
// activity requested it, so the result can be routed back to the right
// consumer.
type ChainSegmentProcessID struct {
	Kind      ProcessIDKind
	Chain     ChainID
	Epoch     primitives.Epoch
	ChainHead primitives.Root
}

// NewRangeBatchID builds a RangeBatch process ID.
func NewRangeBatchID(chain ChainID, epoch primitives.Epoch) ChainSegmentProcessID {
	return ChainSegmentProcessID{Kind: RangeBatch, Chain: chain, Epoch: epoch}
}

// NewBackSyncBatchID builds a BackSyncBatch process ID.
func NewBackSyncBatchID(epoch primitives.Epoch) ChainSegmentProcessID {
	return ChainSegmentProcessID{Kind: BackSyncBatch, Epoch: epoch}
}

// NewParentLookupID builds a ParentLookup process ID.
func NewParentLookupID(chainHead primitives.Root) ChainSegmentProcessID {
	return ChainSegmentProcessID{Kind: ParentLookup, ChainHead: chainHead}
}
