package verification

import (
	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// PreProcessingSnapshot pairs a parent block with the pre-state the parent
// loader resolved for it. Owned means the snapshot cache relinquished this copy to the
// caller, who is now free to mutate it; a borrowed snapshot must not be
// mutated in place without first cloning.
type PreProcessingSnapshot struct {
	ParentBlock blocks.ROBlock
	PreState    state.BeaconState
	// Owned reports whether the caller may mutate PreState directly. It is
	// false when the snapshot cache handed out a shared reference still
	// needed by a concurrent consumer; such a snapshot is cloned before use.
	Owned bool
}

// Source records where a PreProcessingSnapshot came from, for cache hit/miss
// metrics.
type Source int

const (
	// SourceSnapshotCache: the snapshot cache already had this parent/state pair.
	SourceSnapshotCache Source = iota
	// SourceStore: the parent and its advanced hot state were read from the
	// persistent store.
	SourceStore
)

// SnapshotWriter is the write half of the snapshot cache, kept separate from
// SnapshotCache because it is only ever exercised at commit time: "the
// snapshot cache is given the advanced state back only if the block
// commits". A SnapshotCache that doesn't also implement this
// (e.g. a test double) is never written to.
type SnapshotWriter interface {
	Put(parentRoot primitives.Root, snap PreProcessingSnapshot)
}
