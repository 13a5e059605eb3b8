// Package primitives defines the small scalar types threaded through the
// block verification pipeline: slots, epochs, and validator/committee
// indices.
package primitives

import (
	eth2types "github.com/prysmaticlabs/eth2-types"
)

// Slot is a consensus time unit; SlotsPerEpoch slots make up one epoch.
type Slot = eth2types.Slot

// Epoch is a consensus time unit composed of SlotsPerEpoch slots.
type Epoch = eth2types.Epoch

// ValidatorIndex identifies a validator's position in the registry.
type ValidatorIndex = eth2types.ValidatorIndex

// CommitteeIndex identifies a committee within a slot.
type CommitteeIndex = eth2types.CommitteeIndex

// Root is a 32-byte tree-hash root: a block root, state root, or parent root.
type Root [32]byte

// IsZero reports whether the root is the zero hash.
func (r Root) IsZero() bool {
	return r == Root{}
}

// Bytes returns a freshly-copied slice view of the root, for APIs (hashing,
// signing) that need a []byte rather than a fixed-size array.
func (r Root) Bytes() []byte {
	b := make([]byte, 32)
	copy(b, r[:])
	return b
}

// Checkpoint pairs an epoch with the root of the block that starts it.
type Checkpoint struct {
	Epoch Epoch
	Root  Root
}
