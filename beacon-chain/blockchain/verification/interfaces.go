package verification

import (
	"context"
	"time"

	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// SlotClock is the external collaborator that knows wall-clock time in
// slots. NowWithFutureTolerance lets the
// gossip path accept a block arriving slightly early for clock skew between
// peers.
type SlotClock interface {
	Now() primitives.Slot
	NowWithFutureTolerance(d time.Duration) primitives.Slot
	StartOf(slot primitives.Slot) time.Duration
	UnaggregatedAttestationProductionDelay() time.Duration
}

// Store is the persistent-storage collaborator. A
// StoreBatch accumulates writes to be applied atomically at commit time.
type Store interface {
	GetBlindedBlock(ctx context.Context, root primitives.Root) (*blocks.SignedBeaconBlock, error)
	// GetAdvancedHotState returns a hot state for root advanced to at most
	// upToSlot, falling back to fallbackStateRoot's state if no closer
	// advanced state exists.
	GetAdvancedHotState(ctx context.Context, root primitives.Root, upToSlot primitives.Slot, fallbackStateRoot primitives.Root) (state.BeaconState, error)
	LoadHotStateSummary(ctx context.Context, root primitives.Root) (*HotStateSummary, error)
	BlockExists(ctx context.Context, root primitives.Root) (bool, error)
	GetAnchorSlot(ctx context.Context) (primitives.Slot, error)
	// DoAtomically applies a previously-staged StoreBatch as a single
	// transaction; partial application must never be observable.
	DoAtomically(ctx context.Context, batch *StoreBatch) error
}

// HotStateSummary is the lightweight off-epoch-boundary state record
// written instead of a full state.
type HotStateSummary struct {
	Root primitives.Root
	Slot primitives.Slot
}

// StoreBatch accumulates the writes a single block's commit needs to apply
// atomically: any state/summary rows staged during slot catchup plus the
// temporary-flag deletion that makes those writes visible.
type StoreBatch struct {
	StateWrites   []StateWrite
	SummaryWrites []HotStateSummary
	// ClearTemporaryFlags lists the roots whose "in progress" marker should
	// be dropped as part of this same atomic transaction, so a restart mid
	// write never observes a half-written state.
	ClearTemporaryFlags []primitives.Root
}

// StateWrite is a full-state write staged at an epoch boundary.
type StateWrite struct {
	Root  primitives.Root
	State state.BeaconState
}

// Empty reports whether this batch has nothing left to apply beyond
// temporary-flag cleanup: applying an empty batch twice is a no-op.
func (b *StoreBatch) Empty() bool {
	return b == nil || (len(b.StateWrites) == 0 && len(b.SummaryWrites) == 0)
}

// PayloadStatus is the execution layer's verdict on a submitted payload.
type PayloadStatus int

const (
	// PayloadValid: the execution layer fully validated the payload.
	PayloadValid PayloadStatus = iota
	// PayloadInvalid: the execution layer rejected the payload outright.
	PayloadInvalid
	// PayloadOptimistic: the execution layer is still syncing and cannot
	// yet give a definitive answer.
	PayloadOptimistic
)

// ExecutionEngine is the execution-layer collaborator consulted by the
// payload verification task.
type ExecutionEngine interface {
	// NotifyNewPayload submits the block's execution payload via
	// engine_newPayload and returns the EL's status.
	NotifyNewPayload(ctx context.Context, signed *blocks.SignedBeaconBlock) (PayloadStatus, error)
	// ValidateMergeBlock checks the merge-transition block's referenced
	// terminal PoW block, tolerating a syncing EL (AllowOptimisticImport::Yes).
	ValidateMergeBlock(ctx context.Context, signed *blocks.SignedBeaconBlock) (PayloadStatus, error)
	// IsOptimisticCandidateBlock reports whether a block at slot with the
	// given parent is eligible to be imported optimistically, combining
	// finality distance and the EL's syncing status.
	IsOptimisticCandidateBlock(ctx context.Context, slot primitives.Slot, parentRoot primitives.Root) (bool, error)
}

// ForkChoice is the fork-choice collaborator. Every attestation/attester-slashing
// ingestion happens under its write lock.
type ForkChoice interface {
	ContainsBlock(root primitives.Root) bool
	GetBlock(root primitives.Root) (*ForkChoiceNode, bool)
	IsFinalizedCheckpointOrDescendant(root primitives.Root) bool
	// OnAttestation ingests an indexed attestation. fromBlock is true when the
	// attestation was found inside a block body rather than gossiped alone;
	// invalid attestations from a block are ignored, not
	// surfaced as block-level errors.
	OnAttestation(ctx context.Context, indexed *blocks.IndexedAttestation, fromBlock bool) error
	OnAttesterSlashing(ctx context.Context, slashing *blocks.AttesterSlashing) error
	CachedHead() (primitives.Root, error)
	// InsertBlock admits a block (and its associated execution-payload
	// validity) into fork choice at commit time.
	InsertBlock(ctx context.Context, block ROBlockWithState) error
	FinalizedCheckpoint() primitives.Checkpoint
}

// ForkChoiceNode is the subset of fork-choice bookkeeping the pipeline reads
// back: a block's root, slot, and whether its execution payload is known
// invalid.
type ForkChoiceNode struct {
	Root                    primitives.Root
	Slot                    primitives.Slot
	ExecutionPayloadInvalid bool
	// Optimistic mirrors the Optimistic flag the block was inserted with
	// (ROBlockWithState.Optimistic); it is cleared once the execution layer
	// confirms the payload, which is outside this package's scope to drive.
	Optimistic bool
}

// ROBlockWithState is the payload fork choice receives at commit: the
// imported block plus the post-state fork choice needs to track the head.
type ROBlockWithState struct {
	Block      blocks.ROBlock
	State      state.BeaconState
	Optimistic bool
}

// Slasher is the optional slasher collaborator. A nil Slasher is valid:
// callers must check before using it.
type Slasher interface {
	AcceptBlockHeader(ctx context.Context, header *blocks.SignedBeaconBlockHeader) error
}

// ValidatorMonitor is the optional validator-performance collaborator.
type ValidatorMonitor interface {
	ProcessValidatorStatuses(ctx context.Context, epoch primitives.Epoch, summary *ValidatorStatusSummary) error
}

// ValidatorStatusSummary is a placeholder payload handed to the validator
// monitor; its internal shape belongs to the validator-monitor collaborator
// and is not modeled further here.
type ValidatorStatusSummary struct {
	Epoch primitives.Epoch
}
