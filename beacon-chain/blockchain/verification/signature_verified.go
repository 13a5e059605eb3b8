package verification

import (
	"context"
	"errors"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
)

// unknownValidatorBlockError translates an unknownProposerError surfaced by
// the signature batch into the UnknownValidator BlockError.
func unknownValidatorBlockError(err error) *BlockError {
	var upe *unknownProposerError
	if errors.As(err, &upe) {
		e := NewUnknownValidator(upe.idx)
		recordRejection(e.Kind)
		return e
	}
	return NewBeaconChainError(err)
}

// SignatureVerifiedBlock is the pipeline's stage-3 value: every signature
// referenced by the block (proposal, RANDAO, attestations, slashings,
// exits, BLS-to-execution changes) has been checked against a single
// signature batch.
type SignatureVerifiedBlock struct {
	RO       blocks.ROBlock
	Ctx      *transition.ConsensusContext
	ParentSnapshot PreProcessingSnapshot
}

// SignatureDeps bundles what signature verification needs beyond the block
// itself.
type SignatureDeps struct {
	Pubkeys  PubkeyLookup
	Resolver AttestationResolver
}

// FromGossipVerified completes signature verification for a block that
// already had its proposer signature checked at the gossip stage.
func FromGossipVerified(ctx context.Context, gv *GossipVerifiedBlock, deps SignatureDeps) (*SignatureVerifiedBlock, *BlockError) {
	batch := NewSignatureBatch()
	if err := IncludeAllSignaturesExceptProposal(batch, gv.RO, gv.Ctx, deps.Pubkeys, deps.Resolver); err != nil {
		return nil, NewBeaconChainError(err)
	}
	if !batch.Verify() {
		e := NewInvalidSignature()
		recordRejection(e.Kind)
		return nil, e
	}
	return &SignatureVerifiedBlock{RO: gv.RO, Ctx: gv.Ctx, ParentSnapshot: gv.ROParent}, nil
}

// FromUnverified runs full signature verification, including the block
// proposal signature, for a block that skipped the gossip stage (e.g.
// arrived via RPC).
func FromUnverified(ctx context.Context, ro blocks.ROBlock, parent PreProcessingSnapshot, deps SignatureDeps) (*SignatureVerifiedBlock, *BlockError) {
	cc := transition.NewConsensusContext(ro.Slot())
	cc.SetProposerIndex(ro.ProposerIndex())
	batch := NewSignatureBatch()
	if err := IncludeAllSignatures(batch, ro, cc, deps.Pubkeys, deps.Resolver); err != nil {
		return nil, unknownValidatorBlockError(err)
	}
	if !batch.Verify() {
		e := NewInvalidSignature()
		recordRejection(e.Kind)
		return nil, e
	}
	return &SignatureVerifiedBlock{RO: ro, Ctx: cc, ParentSnapshot: parent}, nil
}

// VerifyChainSegmentSignatures implements the chain-segment batch signature
// pass: one shared batch across every block in the segment,
// each with its own consensus context; a single failure rejects the whole
// segment without attributing blame to an individual block.
func VerifyChainSegmentSignatures(ctx context.Context, segment []blocks.ROBlock, parent PreProcessingSnapshot, deps SignatureDeps) ([]*SignatureVerifiedBlock, *BlockError) {
	if len(segment) == 0 {
		return nil, nil
	}
	batch := NewSignatureBatch()
	ccs := make([]*transition.ConsensusContext, len(segment))
	for i, ro := range segment {
		cc := transition.NewConsensusContext(ro.Slot())
		cc.SetProposerIndex(ro.ProposerIndex())
		ccs[i] = cc
		if err := IncludeAllSignatures(batch, ro, cc, deps.Pubkeys, deps.Resolver); err != nil {
			return nil, unknownValidatorBlockError(err)
		}
	}
	chainSegmentSize.Observe(float64(len(segment)))
	if !batch.Verify() {
		e := NewInvalidSignature()
		recordRejection(e.Kind)
		return nil, e
	}

	out := make([]*SignatureVerifiedBlock, len(segment))
	for i, ro := range segment {
		svb := &SignatureVerifiedBlock{RO: ro, Ctx: ccs[i]}
		if i == 0 {
			svb.ParentSnapshot = parent
		}
		out[i] = svb
	}
	return out, nil
}
