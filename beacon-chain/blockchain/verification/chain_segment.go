package verification

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
)

// BatchResultKind selects which BatchProcessResult variant a chain-segment
// import produced.
type BatchResultKind int

const (
	// BatchSuccess: every block in the segment imported. An already-known
	// first block is skipped; an already-known block at any later position
	// fails the batch instead.
	BatchSuccess BatchResultKind = iota
	// BatchFaultyFailure: a peer-fault error stopped the segment partway
	// through; the peer should be penalised.
	BatchFaultyFailure
	// BatchNonFaultyFailure: an internal or not-our-peer's-fault error
	// stopped the segment; no penalty is applied.
	BatchNonFaultyFailure
)

// BatchProcessResult is emitted by ProcessChainSegment.
type BatchProcessResult struct {
	Kind           BatchResultKind
	ImportedBlocks int
	// WasNonEmpty is false when a BatchSuccess imported nothing: the segment
	// was empty, or its only block was already known.
	WasNonEmpty bool
	Penalty     bool
	Err         *BlockError
}

// ProcessChainSegment verifies a single epoch's worth
// of blocks with one shared signature batch, then admit them one at a time
// through the execution-pending and commit stages in order.
func (p *Pipeline) ProcessChainSegment(ctx context.Context, segment []*blocks.SignedBeaconBlock) *BatchProcessResult {
	ctx, span := trace.StartSpan(ctx, "verification.ProcessChainSegment")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("segment_size", int64(len(segment))))

	if len(segment) == 0 {
		return &BatchProcessResult{Kind: BatchSuccess, WasNonEmpty: false}
	}

	ros := make([]blocks.ROBlock, 0, len(segment))
	for i, signed := range segment {
		ro, rerr := CheckRelevancy(ctx, p.Clock, p.ForkChoice, signed, RelevancyOpts{})
		if rerr != nil {
			if rerr.Kind == BlockIsAlreadyKnown && i == 0 {
				continue
			}
			return classifyBatchError(rerr, len(ros))
		}
		ros = append(ros, ro)
	}
	if len(ros) == 0 {
		return &BatchProcessResult{Kind: BatchSuccess, WasNonEmpty: false}
	}

	highestSlot := ros[len(ros)-1].Slot()
	parent, lerr := LoadParent(ctx, p.ForkChoice, p.Snapshots, p.Store, ros[0])
	if lerr != nil {
		return classifyBatchError(lerr, 0)
	}
	adv, aerr := CheapStateAdvance(ctx, p.Transition, parent.PreState, highestSlot)
	if aerr != nil {
		return classifyBatchError(aerr, 0)
	}
	parent.PreState = adv.State
	parent.Owned = adv.Owned

	verified, berr := VerifyChainSegmentSignatures(ctx, ros, parent, SignatureDeps{Pubkeys: p.Pubkeys, Resolver: p.AttResolver})
	if berr != nil {
		return classifyBatchError(berr, 0)
	}

	imported := 0
	for _, svb := range verified {
		epb, berr := IntoExecutionPending(ctx, svb, p.executionDeps())
		if berr != nil {
			p.reportSlasher(ctx, SlashInfoFromVerifiedBlock(svb.RO, berr))
			return classifyBatchError(berr, imported)
		}
		if _, berr := Commit(ctx, CommitDeps{Store: p.Store, ForkChoice: p.ForkChoice, Slasher: p.Slasher, Snapshots: p.Snapshots}, epb); berr != nil {
			return classifyBatchError(berr, imported)
		}
		imported++
	}

	return &BatchProcessResult{Kind: BatchSuccess, ImportedBlocks: imported, WasNonEmpty: imported > 0}
}

// classifyBatchError classifies a batch failure: peer
// faults become BatchFaultyFailure with a penalty; everything else is
// BatchNonFaultyFailure.
func classifyBatchError(e *BlockError, imported int) *BatchProcessResult {
	if e.IsPeerFault() {
		return &BatchProcessResult{Kind: BatchFaultyFailure, ImportedBlocks: imported, Penalty: true, Err: e}
	}
	return &BatchProcessResult{Kind: BatchNonFaultyFailure, ImportedBlocks: imported, Err: e}
}
