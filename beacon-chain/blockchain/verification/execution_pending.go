package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	beaconstate "github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/featureconfig"
)

// ErrRuntimeShutdown is returned when the task executor refuses to spawn the
// payload verification task because the runtime is shutting down.
var ErrRuntimeShutdown = errors.New("runtime is shutting down")

// TaskSpawner abstracts the task executor that runs the payload
// verification task in the background. The default
// production spawner always succeeds; a shutting-down runtime returns
// ErrRuntimeShutdown instead of starting the goroutine.
type TaskSpawner interface {
	Spawn(fn func())
	// TrySpawn is like Spawn but reports whether the task executor accepted
	// the work; false means the runtime is shutting down.
	TrySpawn(fn func()) bool
}

// GoroutineSpawner is the production TaskSpawner: every task runs on its own
// goroutine, and TrySpawn always succeeds.
type GoroutineSpawner struct{}

func (GoroutineSpawner) Spawn(fn func())        { go fn() }
func (GoroutineSpawner) TrySpawn(fn func()) bool { go fn(); return true }

// PayloadVerificationOutcome is what the payload verification task resolves
// to.
type PayloadVerificationOutcome struct {
	Status                   PayloadStatus
	IsValidMergeTransitionBlock bool
}

// PayloadVerificationHandle is the join handle attached to an
// ExecutionPendingBlock; it must be awaited before commit.
type PayloadVerificationHandle struct {
	done    chan struct{}
	outcome PayloadVerificationOutcome
	err     *BlockError
}

// Await blocks until the payload verification task finishes or ctx is
// cancelled.
func (h *PayloadVerificationHandle) Await(ctx context.Context) (PayloadVerificationOutcome, *BlockError) {
	select {
	case <-h.done:
		return h.outcome, h.err
	case <-ctx.Done():
		return PayloadVerificationOutcome{}, NewBeaconChainError(ctx.Err())
	}
}

// ExecutionPendingDeps bundles the collaborators the execution-pending stage
// and its payload verification task need.
type ExecutionPendingDeps struct {
	ForkChoice  ForkChoice
	Snapshots   SnapshotCache
	Store       Store
	Engine      ExecutionEngine
	Transition  transition.StateTransition
	Spawner     TaskSpawner
	ParentHadPayload func(parentRoot [32]byte) (bool, error)
}

// ExecutionPendingBlock is the pipeline's stage-4 value: every signature is
// valid, the state transition has run, and the payload verification task is
// in flight.
type ExecutionPendingBlock struct {
	RO            blocks.ROBlock
	Ctx           *transition.ConsensusContext
	PostState     beaconstate.BeaconState
	Batch         *StoreBatch
	PayloadHandle *PayloadVerificationHandle
}

// IntoExecutionPending dispatches the execution-payload verification task and
// resolves the parent snapshot concurrently (the latter via errgroup, since
// an already-cached snapshot makes it a no-op and a store round trip can
// otherwise run alongside the payload dispatch), then runs the state
// transition synchronously against whichever snapshot resolved; fork-choice
// side effects are applied at Commit time, once the payload handle resolves.
func IntoExecutionPending(ctx context.Context, svb *SignatureVerifiedBlock, deps ExecutionPendingDeps) (*ExecutionPendingBlock, *BlockError) {
	parentNode, ok := deps.ForkChoice.GetBlock(svb.RO.ParentRoot())
	if !ok {
		e := NewParentUnknown(svb.RO.Block())
		recordRejection(e.Kind)
		return nil, e
	}
	if parentNode.ExecutionPayloadInvalid {
		e := NewParentExecutionPayloadInvalid(svb.RO.ParentRoot())
		recordRejection(e.Kind)
		return nil, e
	}

	snap := svb.ParentSnapshot
	var handle *PayloadVerificationHandle
	var loadErr *BlockError

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Uses ctx, not gctx: the payload task outlives this function and the
		// errgroup's lifetime, so it must not be cancelled by a sibling
		// goroutine's failure.
		handle = spawnPayloadVerification(ctx, deps, svb.RO, parentNode)
		return nil
	})
	if snap.PreState == nil {
		g.Go(func() error {
			loaded, lerr := LoadParent(gctx, deps.ForkChoice, deps.Snapshots, deps.Store, svb.RO)
			if lerr != nil {
				loadErr = lerr
				return lerr
			}
			snap = loaded
			return nil
		})
	}
	_ = g.Wait()
	if loadErr != nil {
		return nil, loadErr
	}

	maybeDumpBlockSSZ(svb.RO)

	postState, batch, serr := runStateTransition(ctx, deps.Transition, snap, svb.RO, svb.Ctx)
	if serr != nil {
		return nil, serr
	}

	return &ExecutionPendingBlock{RO: svb.RO, Ctx: svb.Ctx, PostState: postState, Batch: batch, PayloadHandle: handle}, nil
}

// maybeDumpBlockSSZ writes a debug dump of ro, keyed by its already-computed
// tree-hash root, when WriteBlockProcessingSSZ is enabled. Errors are logged
// and otherwise ignored: a failed debug dump must never fail block
// processing.
func maybeDumpBlockSSZ(ro blocks.ROBlock) {
	flags := featureconfig.Get()
	if !flags.WriteBlockProcessingSSZ {
		return
	}
	dir := flags.SSZDumpDir
	if dir == "" {
		dir = os.TempDir()
	}
	raw, err := json.Marshal(ro.Block())
	if err != nil {
		log.WithError(err).Warn("could not encode block for debug dump")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("block_processing_%x_slot_%d.json", ro.Root(), ro.Slot()))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		log.WithError(err).Warn("could not write block processing debug dump")
		return
	}
	log.WithField("path", path).Debug("wrote block processing debug dump")
}

// runStateTransition advances the pre-state to
// the block's slot, runs per_block_processing with NoVerification signature
// strategy (upstream already proved every signature valid) and Accurate
// tree-hash strategy, then compare the resulting state root to the block's
// declared state_root.
func runStateTransition(ctx context.Context, st transition.StateTransition, snap PreProcessingSnapshot, ro blocks.ROBlock, cc *transition.ConsensusContext) (beaconstate.BeaconState, *StoreBatch, *BlockError) {
	pre := snap.PreState
	if !snap.Owned {
		pre = pre.Copy()
	}

	if ro.Slot() > 0 {
		if err := transition.AdvanceSlots(ctx, st, pre, ro.Slot()); err != nil {
			return nil, nil, NewBeaconChainError(errors.Wrap(err, "could not advance state to block slot"))
		}
	}

	batch := stageIntermediateWrite(pre)

	opts := transition.ProcessBlockOpts{
		SignatureStrategy: transition.NoVerification,
		TreeHashStrategy:  transition.Accurate,
		VerifyBlockRoot:   true,
	}
	if err := st.ProcessBlock(ctx, pre, ro.Block(), cc, opts); err != nil {
		e := NewPerBlockProcessingError(err)
		recordRejection(e.Kind)
		return nil, nil, e
	}

	postRoot, err := pre.HashTreeRoot()
	if err != nil {
		return nil, nil, NewBeaconChainError(err)
	}
	if postRoot != ro.Block().Block.StateRoot {
		e := NewStateRootMismatch(ro.Block().Block.StateRoot, postRoot)
		recordRejection(e.Kind)
		return nil, nil, e
	}

	return pre, batch, nil
}

// stageIntermediateWrite builds the atomic write for a slot-catchup result:
// a full state at epoch boundaries, a lightweight summary otherwise, plus
// the temporary-flag clear that makes the write visible to a restart.
func stageIntermediateWrite(st beaconstate.BeaconState) *StoreBatch {
	root, err := st.HashTreeRoot()
	if err != nil {
		return &StoreBatch{}
	}
	batch := &StoreBatch{ClearTemporaryFlags: []primitives.Root{root}}
	if transition.IsEpochBoundary(st.Slot()) {
		batch.StateWrites = []StateWrite{{Root: root, State: st.Copy()}}
	} else {
		batch.SummaryWrites = []HotStateSummary{{Root: root, Slot: st.Slot()}}
	}
	return batch
}

func spawnPayloadVerification(ctx context.Context, deps ExecutionPendingDeps, ro blocks.ROBlock, parentNode *ForkChoiceNode) *PayloadVerificationHandle {
	h := &PayloadVerificationHandle{done: make(chan struct{})}

	accepted := deps.Spawner.TrySpawn(func() {
		defer close(h.done)
		h.outcome, h.err = verifyPayload(ctx, deps, ro, parentNode)
	})
	if !accepted {
		h.err = NewBeaconChainError(ErrRuntimeShutdown)
		close(h.done)
	}
	return h
}

// verifyPayload runs the three-step EL consultation: skip for pre-merge
// blocks, validate the merge-transition block specially, otherwise submit
// the payload for a normal engine_newPayload check.
func verifyPayload(ctx context.Context, deps ExecutionPendingDeps, ro blocks.ROBlock, parentNode *ForkChoiceNode) (PayloadVerificationOutcome, *BlockError) {
	block := ro.Block().Block
	if !block.IsPostMerge() {
		return PayloadVerificationOutcome{Status: PayloadValid}, nil
	}

	parentHadPayload, err := deps.ParentHadPayload(parentNode.Root)
	if err != nil {
		return PayloadVerificationOutcome{}, NewBeaconChainError(err)
	}
	isMergeTransition := block.IsMergeTransitionBlock(parentHadPayload)

	if isMergeTransition {
		status, err := deps.Engine.ValidateMergeBlock(ctx, ro.Block())
		if err != nil {
			return PayloadVerificationOutcome{}, NewExecutionPayloadError(&ExecutionPayloadError{Kind: RequestFailed, RequestErr: err})
		}
		if status == PayloadInvalid {
			return PayloadVerificationOutcome{}, NewExecutionPayloadError(&ExecutionPayloadError{
				Kind:       InvalidTerminalPoWBlock,
				ParentHash: block.Body.ExecutionPayload.ParentHash,
			})
		}
	}

	status, err := deps.Engine.NotifyNewPayload(ctx, ro.Block())
	if err != nil {
		return PayloadVerificationOutcome{}, NewExecutionPayloadError(&ExecutionPayloadError{Kind: RequestFailed, RequestErr: err})
	}

	switch status {
	case PayloadValid:
		return PayloadVerificationOutcome{Status: PayloadValid, IsValidMergeTransitionBlock: isMergeTransition}, nil
	case PayloadInvalid:
		return PayloadVerificationOutcome{}, NewExecutionPayloadError(&ExecutionPayloadError{Kind: RejectedByExecutionEngine, Status: "INVALID"})
	default:
		ok, err := deps.Engine.IsOptimisticCandidateBlock(ctx, ro.Slot(), ro.ParentRoot())
		if err != nil {
			return PayloadVerificationOutcome{}, NewBeaconChainError(err)
		}
		if !ok {
			return PayloadVerificationOutcome{}, NewExecutionPayloadError(&ExecutionPayloadError{Kind: UnverifiedNonOptimisticCandidate})
		}
		return PayloadVerificationOutcome{Status: PayloadOptimistic, IsValidMergeTransitionBlock: isMergeTransition}, nil
	}
}
