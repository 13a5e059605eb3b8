package verification

import (
	"context"
	"time"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// RelevancyOpts configures the single variance between the gossip and RPC
// callers of CheckRelevancy: gossip grants a small clock-disparity tolerance
// for future-slot blocks, RPC grants none.
type RelevancyOpts struct {
	GossipDisparityTolerance time.Duration
}

// CheckRelevancy runs the relevancy filter: a sequence of O(1)
// rejections against cached fork-choice/finalization state, performed before
// any heavier work. It computes and returns the block's root exactly once;
// every later stage must reuse the returned ROBlock instead of re-hashing.
func CheckRelevancy(ctx context.Context, clock SlotClock, fc ForkChoice, signed *blocks.SignedBeaconBlock, opts RelevancyOpts) (blocks.ROBlock, *BlockError) {
	if signed.IsNil() {
		return blocks.ROBlock{}, NewBeaconChainError(blocks.ErrNilBlock)
	}

	timer := prometheusTimer()
	root, err := signed.Block.HashTreeRoot()
	timer()
	if err != nil {
		return blocks.ROBlock{}, NewBeaconChainError(err)
	}

	now := clock.Now()
	if opts.GossipDisparityTolerance > 0 {
		now = clock.NowWithFutureTolerance(opts.GossipDisparityTolerance)
	}
	if signed.Block.Slot > now {
		e := NewFutureSlot(now, signed.Block.Slot)
		recordRejection(e.Kind)
		return blocks.ROBlock{}, e
	}

	if signed.Block.Slot == 0 {
		e := NewGenesisBlock()
		recordRejection(e.Kind)
		return blocks.ROBlock{}, e
	}

	if signed.Block.Slot >= primitives.Slot(params.BeaconConfig().MaximumBlockSlotNumber) {
		e := NewBlockSlotLimitReached()
		recordRejection(e.Kind)
		return blocks.ROBlock{}, e
	}

	finalized := fc.FinalizedCheckpoint()
	finalizedNode, ok := fc.GetBlock(finalized.Root)
	if ok && signed.Block.Slot <= finalizedNode.Slot {
		e := NewWouldRevertFinalizedSlot(signed.Block.Slot, finalizedNode.Slot)
		recordRejection(e.Kind)
		return blocks.ROBlock{}, e
	}

	if fc.ContainsBlock(root) {
		e := NewBlockIsAlreadyKnown()
		recordRejection(e.Kind)
		return blocks.ROBlock{}, e
	}

	ro, werr := blocks.NewROBlock(signed, root)
	if werr != nil {
		return blocks.ROBlock{}, NewBeaconChainError(werr)
	}
	return ro, nil
}

func prometheusTimer() func() {
	start := timeNow()
	return func() {
		blockRootComputeSeconds.Observe(timeNow().Sub(start).Seconds())
	}
}

// timeNow is a seam so tests could substitute a fixed clock if ever needed;
// production always uses the wall clock.
var timeNow = time.Now
