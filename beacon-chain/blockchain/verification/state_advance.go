package verification

import (
	"context"

	"github.com/pkg/errors"
	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	beaconstate "github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// AdvancedState is the result of CheapStateAdvance: a state with committee
// caches populated for the target block's epoch, plus whether it is the
// caller's own mutable copy or a borrowed view into the original.
type AdvancedState struct {
	State beaconstate.BeaconState
	Owned bool
}

// CheapStateAdvance implements the cheap state advance:
// answer committee/proposer shuffling queries for blockSlot without mutating
// the canonical pre-state unless the caller already owns it.
func CheapStateAdvance(ctx context.Context, st transition.StateTransition, pre beaconstate.BeaconState, blockSlot primitives.Slot) (AdvancedState, *BlockError) {
	blockEpoch := epochAt(blockSlot)

	if pre.Slot() > blockSlot {
		e := NewBlockIsNotLaterThanParent(blockSlot, pre.Slot())
		recordRejection(e.Kind)
		return AdvancedState{}, e
	}

	if pre.CurrentEpoch() == blockEpoch {
		if err := pre.BuildCommitteeCache(blockEpoch); err != nil {
			return AdvancedState{}, NewBeaconChainError(errors.Wrap(err, "could not build committee cache in place"))
		}
		return AdvancedState{State: pre, Owned: false}, nil
	}

	clone := pre.Copy()
	// Advance only to the first slot of the block's epoch, never all the way
	// to blockSlot itself: the slot catch-up in the execution-pending stage is
	// what carries the state the rest of the way.
	target := firstSlotOfEpoch(blockEpoch)

	if err := transition.AdvanceSlots(ctx, st, clone, target); err != nil {
		return AdvancedState{}, NewBeaconChainError(errors.Wrap(err, "could not advance cloned state to epoch boundary"))
	}
	if err := clone.BuildCommitteeCache(blockEpoch); err != nil {
		return AdvancedState{}, NewBeaconChainError(errors.Wrap(err, "could not build committee cache on cloned state"))
	}

	return AdvancedState{State: clone, Owned: true}, nil
}

func epochAt(slot primitives.Slot) primitives.Epoch {
	spe := uint64(params.BeaconConfig().SlotsPerEpoch)
	return primitives.Epoch(uint64(slot) / spe)
}

func firstSlotOfEpoch(epoch primitives.Epoch) primitives.Slot {
	spe := uint64(params.BeaconConfig().SlotsPerEpoch)
	return primitives.Slot(uint64(epoch) * spe)
}
