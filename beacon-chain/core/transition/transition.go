package transition

import (
	"context"

	"github.com/pkg/errors"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
	beaconstate "github.com/voyager-chain/beaconverify/beacon-chain/state"
)

// BlockSignatureStrategy tells per_block_processing whether to re-verify
// signatures that an earlier stage already checked.
type BlockSignatureStrategy int

const (
	// VerifyAllSignatures re-checks every signature in the block.
	VerifyAllSignatures BlockSignatureStrategy = iota
	// NoVerification trusts that the signature batch verifier already
	// proved every signature valid upstream.
	NoVerification
)

// TreeHashStrategy selects how per_block_processing computes intermediate
// tree-hash roots. The pipeline only ever asks for Accurate.
type TreeHashStrategy int

// Accurate computes exact tree-hash roots rather than a cached approximation.
const Accurate TreeHashStrategy = 0

// ProcessBlockOpts configures a single per_block_processing call.
type ProcessBlockOpts struct {
	SignatureStrategy BlockSignatureStrategy
	TreeHashStrategy  TreeHashStrategy
	VerifyBlockRoot   bool
}

// ErrStateNewerThanBlock is returned by AdvanceSlots when the state's slot
// already exceeds the target slot.
var ErrStateNewerThanBlock = errors.New("state slot is later than target slot")

// ErrIncorrectBlockProposer names a proposer-index mismatch. No code in this
// module returns it: the gossip stage reports that case as an
// IncorrectBlockProposer BlockError directly.
var ErrIncorrectBlockProposer = errors.New("block proposer index does not match local shuffling")

// StateTransition is the external collaborator that actually runs the
// consensus per-slot and per-block processing functions, treated as an
// interface with a named contract. This pipeline never reimplements it; it
// only calls through this interface and reacts to the result.
type StateTransition interface {
	// ProcessSlot advances st by exactly one slot (per_slot_processing for a
	// single slot), without computing an intermediate state root unless the
	// caller later asks for one via HashTreeRoot. It mutates st in place, so
	// callers decide whether to clone first.
	ProcessSlot(ctx context.Context, st beaconstate.BeaconState) error

	// ProcessBlock runs per_block_processing against st using the supplied
	// consensus context (so indexed attestations computed upstream are
	// reused) and options. It returns an error on spec violations, which the
	// execution-pending stage maps to BlockError.PerBlockProcessingError.
	ProcessBlock(ctx context.Context, st beaconstate.BeaconState, signed *blocks.SignedBeaconBlock, cc *ConsensusContext, opts ProcessBlockOpts) error
}

// AdvanceSlots runs ProcessSlot in a loop until st.Slot() == targetSlot.
// It does not clone st; callers that need to preserve the original state
// must clone before calling this.
func AdvanceSlots(ctx context.Context, transition StateTransition, st beaconstate.BeaconState, targetSlot primitives.Slot) error {
	if st.Slot() > targetSlot {
		return ErrStateNewerThanBlock
	}
	for st.Slot() < targetSlot {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := transition.ProcessSlot(ctx, st); err != nil {
			return errors.Wrapf(err, "could not process slot %d", st.Slot())
		}
	}
	return nil
}

// NextEpochBoundarySlot returns the first slot of the epoch following the one
// containing slot, used for epoch-boundary bookkeeping.
func NextEpochBoundarySlot(slot primitives.Slot) primitives.Slot {
	spe := primitives.Slot(params.BeaconConfig().SlotsPerEpoch)
	epoch := slot / spe
	return (epoch + 1) * spe
}

// IsEpochBoundary reports whether slot is the first slot of its epoch.
func IsEpochBoundary(slot primitives.Slot) bool {
	spe := primitives.Slot(params.BeaconConfig().SlotsPerEpoch)
	return slot%spe == 0
}
