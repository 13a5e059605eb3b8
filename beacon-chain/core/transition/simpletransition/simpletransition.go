// Package simpletransition provides a minimal, dependency-free
// implementation of transition.StateTransition for tests and for the
// cmd/beaconverify CLI harness. It does not implement any consensus-spec
// rule; it only provides hooks a caller can wire up to simulate per-block
// validation outcomes, since the real state-transition function is an
// external collaborator.
package simpletransition

import (
	"context"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	beaconstate "github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
)

// BlockProcessorFunc validates a block against a state in place, mirroring
// per_block_processing's contract: mutate st, return an error on consensus
// violation.
type BlockProcessorFunc func(ctx context.Context, st beaconstate.BeaconState, signed *blocks.SignedBeaconBlock, cc *transition.ConsensusContext, opts transition.ProcessBlockOpts) error

// Transition is a hook-configurable transition.StateTransition.
type Transition struct {
	// ProcessSlotFn advances a state by one slot. If nil, SetSlot(Slot()+1)
	// is used, which is sufficient for tests that don't care about
	// intermediate state content.
	ProcessSlotFn func(ctx context.Context, st beaconstate.BeaconState) error
	// ProcessBlockFn validates the block. If nil, the block is always
	// accepted and the state's slot is advanced to the block's slot.
	ProcessBlockFn BlockProcessorFunc
}

// New returns a Transition that accepts every block and advances slots
// trivially; callers override ProcessSlotFn/ProcessBlockFn to exercise
// specific failure paths.
func New() *Transition {
	return &Transition{}
}

// ProcessSlot implements transition.StateTransition.
func (t *Transition) ProcessSlot(ctx context.Context, st beaconstate.BeaconState) error {
	if t.ProcessSlotFn != nil {
		return t.ProcessSlotFn(ctx, st)
	}
	st.SetSlot(st.Slot() + 1)
	return nil
}

// ProcessBlock implements transition.StateTransition.
func (t *Transition) ProcessBlock(ctx context.Context, st beaconstate.BeaconState, signed *blocks.SignedBeaconBlock, cc *transition.ConsensusContext, opts transition.ProcessBlockOpts) error {
	if t.ProcessBlockFn != nil {
		return t.ProcessBlockFn(ctx, st, signed, cc, opts)
	}
	st.SetSlot(signed.Block.Slot)
	return nil
}

var _ transition.StateTransition = (*Transition)(nil)
