// Package state defines the narrow BeaconState contract the verification
// pipeline relies on. The state-transition function that actually mutates a
// BeaconState is an external collaborator; this package only
// describes what the pipeline reads off one.
package state

import (
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// BeaconState is the pre/post-state the pipeline advances, mutates, and
// reads checkpoints from. Implementations own their own internal
// representation (tree-backed, flat struct, whatever); the pipeline only
// ever calls through this interface.
type BeaconState interface {
	Slot() primitives.Slot
	SetSlot(primitives.Slot)
	CurrentEpoch() primitives.Epoch
	// Copy returns a deep copy safe for independent mutation. Implementations
	// are expected to share immutable substructures and clone only the
	// committee caches, never the tree-hash caches.
	Copy() BeaconState
	FinalizedCheckpoint() primitives.Checkpoint
	CurrentJustifiedCheckpoint() primitives.Checkpoint
	SetFinalizedCheckpoint(primitives.Checkpoint)
	SetCurrentJustifiedCheckpoint(primitives.Checkpoint)
	// HashTreeRoot returns the state's tree-hash root, used for the
	// state-root check in the execution-pending stage.
	HashTreeRoot() (primitives.Root, error)
	// BuildCommitteeCache populates committee/proposer shuffling caches for
	// the given epoch in place.
	BuildCommitteeCache(epoch primitives.Epoch) error
}
