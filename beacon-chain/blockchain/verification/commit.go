package verification

import (
	"context"

	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// ImportedBlock is the pipeline's terminal value: a block fully admitted
// into fork choice and the store.
type ImportedBlock struct {
	Root  primitives.Root
	Optimistic bool
}

// CommitDeps bundles the collaborators the commit step touches.
type CommitDeps struct {
	Store      Store
	ForkChoice ForkChoice
	Slasher    Slasher
	Snapshots  SnapshotCache
}

// Commit is the pipeline's terminal step: await the payload handle, and if
// valid, atomically apply the staged store writes, insert the block into
// fork choice, and promote the pre-state to the parent-state slot. Attester
// slashings and attestations are applied to fork choice here too; invalid
// attestations surfaced by that step are intentionally swallowed, not
// propagated as block errors.
func Commit(ctx context.Context, deps CommitDeps, epb *ExecutionPendingBlock) (*ImportedBlock, *BlockError) {
	outcome, perr := epb.PayloadHandle.Await(ctx)
	if perr != nil {
		reportCommitFailure(ctx, deps, epb, perr)
		return nil, perr
	}
	if outcome.Status == PayloadInvalid {
		e := NewExecutionPayloadError(&ExecutionPayloadError{Kind: RejectedByExecutionEngine, Status: "INVALID"})
		recordRejection(e.Kind)
		reportCommitFailure(ctx, deps, epb, e)
		return nil, e
	}

	if !epb.Batch.Empty() || len(epb.Batch.ClearTemporaryFlags) > 0 {
		if err := deps.Store.DoAtomically(ctx, epb.Batch); err != nil {
			e := NewBeaconChainError(err)
			reportCommitFailure(ctx, deps, epb, e)
			return nil, e
		}
	}

	for _, as := range epb.RO.Block().Block.Body.AttesterSlashings {
		if err := deps.ForkChoice.OnAttesterSlashing(ctx, as); err != nil {
			e := NewBeaconChainError(err)
			reportCommitFailure(ctx, deps, epb, e)
			return nil, e
		}
	}

	optimistic := outcome.Status == PayloadOptimistic
	for _, ia := range epb.Ctx.IndexedAttestations() {
		// A bad attestation inside an already-valid block is not a
		// block-level fault; it is simply skipped.
		_ = deps.ForkChoice.OnAttestation(ctx, ia, true)
	}

	if err := deps.ForkChoice.InsertBlock(ctx, ROBlockWithState{Block: epb.RO, State: epb.PostState, Optimistic: optimistic}); err != nil {
		e := NewBeaconChainError(err)
		reportCommitFailure(ctx, deps, epb, e)
		return nil, e
	}

	if w, ok := deps.Snapshots.(SnapshotWriter); ok {
		w.Put(epb.RO.Root(), PreProcessingSnapshot{ParentBlock: epb.RO, PreState: epb.PostState})
	}

	return &ImportedBlock{Root: epb.RO.Root(), Optimistic: optimistic}, nil
}

// reportCommitFailure forwards a commit-stage failure to the configured
// slasher. Commit only ever runs on a block whose proposer signature already
// passed verification, so the slash-info is always a SignatureValid variant.
func reportCommitFailure(ctx context.Context, deps CommitDeps, epb *ExecutionPendingBlock, err *BlockError) {
	if deps.Slasher == nil {
		return
	}
	info := SlashInfoFromVerifiedBlock(epb.RO, err)
	_ = ReportToSlasher(SlasherReportContext{Ctx: ctx}, info, deps.Slasher)
}
