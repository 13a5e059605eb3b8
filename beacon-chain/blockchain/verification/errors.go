package verification

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// BlockError is returned when a block was not verified, either because it is
// malformed/invalid or because verification hit an internal error. Kind
// distinguishes peer faults, internal errors, and the handful of
// not-yet-actionable outcomes (e.g. ParentUnknown) that ask the caller for
// more data rather than condemning the block.
type BlockError struct {
	// Kind selects which variant this is; Block/Local/etc fields are only
	// meaningful for the kinds that document them below.
	Kind BlockErrorKind

	// ParentBlock carries the offending block back to the sync layer so it
	// can request the missing parent (ParentUnknown).
	ParentBlock *blocks.SignedBeaconBlock

	PresentSlot primitives.Slot // FutureSlot
	BlockSlot   primitives.Slot // FutureSlot, WouldRevertFinalizedSlot, BlockIsNotLaterThanParent

	BlockRoot primitives.Root // StateRootMismatch (block), NotFinalizedDescendant (parent root)
	LocalRoot primitives.Root // StateRootMismatch (local)

	FinalizedSlot primitives.Slot // WouldRevertFinalizedSlot
	ParentSlot    primitives.Slot // BlockIsNotLaterThanParent

	LocalProposer primitives.ValidatorIndex // IncorrectBlockProposer
	BlockProposer primitives.ValidatorIndex // IncorrectBlockProposer

	UnknownValidator primitives.ValidatorIndex // UnknownValidator

	ParentRoot primitives.Root // ParentExecutionPayloadInvalid

	ExecutionPayloadErr *ExecutionPayloadError // ExecutionPayloadError
	PerBlockErr         error                  // PerBlockProcessingError
	Cause               error                  // BeaconChainError wraps an internal error
}

// BlockErrorKind enumerates every peer/internal disposition a block
// verification attempt can end in.
type BlockErrorKind int

const (
	// ParentUnknown: the parent block was unknown. Need-more-data for the
	// caller (it should go fetch the missing parent), but also a low-tolerance
	// peer-fault: blocks should arrive with their parents already known.
	ParentUnknown BlockErrorKind = iota
	// FutureSlot: the block slot is greater than the present slot. Peer-fault
	// (mid-tolerance outside gossip disparity).
	FutureSlot
	// StateRootMismatch: the block's state_root does not match the computed
	// post-state. Peer-fault.
	StateRootMismatch
	// GenesisBlock: slot == 0, cannot be re-imported. Useless-but-not-fault.
	GenesisBlock
	// WouldRevertFinalizedSlot: the slot is at or before the finalized
	// checkpoint's slot. Useless-but-not-fault.
	WouldRevertFinalizedSlot
	// NotFinalizedDescendant: conflicts with finalization. Useless-but-not-fault.
	NotFinalizedDescendant
	// BlockIsAlreadyKnown: fork choice already has this root. Useless-but-not-fault.
	BlockIsAlreadyKnown
	// BlockSlotLimitReached: slot >= MAXIMUM_BLOCK_SLOT_NUMBER. Peer-fault.
	BlockSlotLimitReached
	// IncorrectBlockProposer: the block's proposer_index doesn't match the
	// locally computed shuffling. Peer-fault.
	IncorrectBlockProposer
	// ProposalSignatureInvalid: the proposer signature is invalid. Peer-fault.
	ProposalSignatureInvalid
	// UnknownValidator: block.proposer_index is not known. Peer-fault.
	UnknownValidator_
	// InvalidSignature: some signature in the block (or chain segment) is
	// invalid; the specific offender is not identified. Peer-fault.
	InvalidSignature
	// BlockIsNotLaterThanParent: block.slot <= parent.slot. Peer-fault.
	BlockIsNotLaterThanParent
	// NonLinearParentRoots: a chain segment block's parent_root didn't match
	// the prior block's root. Peer-fault.
	NonLinearParentRoots
	// NonLinearSlots: chain segment slots were not strictly increasing. Peer-fault.
	NonLinearSlots
	// PerBlockProcessingError: per_block_processing rejected the block. Peer-fault.
	PerBlockProcessingError
	// BeaconChainError: an internal error occurred; the block may or may not
	// be valid. Never penalise.
	BeaconChainError
	// WeakSubjectivityConflict: conflicts with the configured weak
	// subjectivity checkpoint. Useless-but-not-fault: the block may be
	// perfectly valid on a fork we no longer consider viable.
	WeakSubjectivityConflict
	// InconsistentFork: the block has the wrong structure for its slot's
	// fork. Peer-fault.
	InconsistentFork
	// ExecutionPayloadErrorKind: see ExecutionPayloadError.PenalizePeer for
	// the per-case scoring decision.
	ExecutionPayloadErrorKind
	// ParentExecutionPayloadInvalid: the parent's execution payload was
	// found invalid. Peer-fault (harsh).
	ParentExecutionPayloadInvalid
	// Slashable: the block is a slashable equivocation from the proposer.
	// Mid-tolerance peer-fault.
	Slashable
)

func (k BlockErrorKind) String() string {
	switch k {
	case ParentUnknown:
		return "ParentUnknown"
	case FutureSlot:
		return "FutureSlot"
	case StateRootMismatch:
		return "StateRootMismatch"
	case GenesisBlock:
		return "GenesisBlock"
	case WouldRevertFinalizedSlot:
		return "WouldRevertFinalizedSlot"
	case NotFinalizedDescendant:
		return "NotFinalizedDescendant"
	case BlockIsAlreadyKnown:
		return "BlockIsAlreadyKnown"
	case BlockSlotLimitReached:
		return "BlockSlotLimitReached"
	case IncorrectBlockProposer:
		return "IncorrectBlockProposer"
	case ProposalSignatureInvalid:
		return "ProposalSignatureInvalid"
	case UnknownValidator_:
		return "UnknownValidator"
	case InvalidSignature:
		return "InvalidSignature"
	case BlockIsNotLaterThanParent:
		return "BlockIsNotLaterThanParent"
	case NonLinearParentRoots:
		return "NonLinearParentRoots"
	case NonLinearSlots:
		return "NonLinearSlots"
	case PerBlockProcessingError:
		return "PerBlockProcessingError"
	case BeaconChainError:
		return "BeaconChainError"
	case WeakSubjectivityConflict:
		return "WeakSubjectivityConflict"
	case InconsistentFork:
		return "InconsistentFork"
	case ExecutionPayloadErrorKind:
		return "ExecutionPayloadError"
	case ParentExecutionPayloadInvalid:
		return "ParentExecutionPayloadInvalid"
	case Slashable:
		return "Slashable"
	default:
		return "Unknown"
	}
}

// Error implements error. Most variants render as their kind name; a handful
// carry enough context to be worth spelling out.
func (e *BlockError) Error() string {
	switch e.Kind {
	case ParentUnknown:
		root := primitives.Root{}
		if e.ParentBlock != nil {
			root = e.ParentBlock.Block.ParentRoot
		}
		return fmt.Sprintf("ParentUnknown(parent_root:%x)", root)
	case FutureSlot:
		return fmt.Sprintf("FutureSlot{present_slot: %d, block_slot: %d}", e.PresentSlot, e.BlockSlot)
	case StateRootMismatch:
		return fmt.Sprintf("StateRootMismatch{block: %x, local: %x}", e.BlockRoot, e.LocalRoot)
	case WouldRevertFinalizedSlot:
		return fmt.Sprintf("WouldRevertFinalizedSlot{block_slot: %d, finalized_slot: %d}", e.BlockSlot, e.FinalizedSlot)
	case IncorrectBlockProposer:
		return fmt.Sprintf("IncorrectBlockProposer{block: %d, local_shuffling: %d}", e.BlockProposer, e.LocalProposer)
	case BlockIsNotLaterThanParent:
		return fmt.Sprintf("BlockIsNotLaterThanParent{block_slot: %d, parent_slot: %d}", e.BlockSlot, e.ParentSlot)
	case ParentExecutionPayloadInvalid:
		return fmt.Sprintf("ParentExecutionPayloadInvalid{parent_root: %x}", e.ParentRoot)
	case ExecutionPayloadErrorKind:
		if e.ExecutionPayloadErr != nil {
			return fmt.Sprintf("ExecutionPayloadError(%s)", e.ExecutionPayloadErr.Error())
		}
		return "ExecutionPayloadError"
	case BeaconChainError:
		if e.Cause != nil {
			return fmt.Sprintf("BeaconChainError(%s)", e.Cause.Error())
		}
		return "BeaconChainError"
	case PerBlockProcessingError:
		if e.PerBlockErr != nil {
			return fmt.Sprintf("PerBlockProcessingError(%s)", e.PerBlockErr.Error())
		}
		return "PerBlockProcessingError"
	default:
		return e.Kind.String()
	}
}

// Unwrap exposes the wrapped internal cause, if any, so callers can use
// errors.Is/errors.As against the underlying collaborator error.
func (e *BlockError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	if e.PerBlockErr != nil {
		return e.PerBlockErr
	}
	return nil
}

// NewParentUnknown constructs a need-more-data error carrying the block back.
func NewParentUnknown(signed *blocks.SignedBeaconBlock) *BlockError {
	return &BlockError{Kind: ParentUnknown, ParentBlock: signed}
}

// NewFutureSlot constructs a peer-fault error for a block claiming a slot
// beyond tolerance.
func NewFutureSlot(present, block primitives.Slot) *BlockError {
	return &BlockError{Kind: FutureSlot, PresentSlot: present, BlockSlot: block}
}

// NewWouldRevertFinalizedSlot constructs the finalized-slot rejection.
func NewWouldRevertFinalizedSlot(block, finalized primitives.Slot) *BlockError {
	return &BlockError{Kind: WouldRevertFinalizedSlot, BlockSlot: block, FinalizedSlot: finalized}
}

// NewBlockIsNotLaterThanParent constructs the non-monotonic-slot rejection.
func NewBlockIsNotLaterThanParent(block, parent primitives.Slot) *BlockError {
	return &BlockError{Kind: BlockIsNotLaterThanParent, BlockSlot: block, ParentSlot: parent}
}

// NewStateRootMismatch constructs the post-state-root mismatch rejection.
func NewStateRootMismatch(block, local primitives.Root) *BlockError {
	return &BlockError{Kind: StateRootMismatch, BlockRoot: block, LocalRoot: local}
}

// NewIncorrectBlockProposer constructs the proposer-index mismatch rejection.
func NewIncorrectBlockProposer(blockProposer, localProposer primitives.ValidatorIndex) *BlockError {
	return &BlockError{Kind: IncorrectBlockProposer, BlockProposer: blockProposer, LocalProposer: localProposer}
}

// NewParentExecutionPayloadInvalid constructs the invalid-parent-payload rejection.
func NewParentExecutionPayloadInvalid(parentRoot primitives.Root) *BlockError {
	return &BlockError{Kind: ParentExecutionPayloadInvalid, ParentRoot: parentRoot}
}

// NewBeaconChainError wraps an internal error from a collaborator (store,
// cache, state-transition) as a never-penalise BlockError.
func NewBeaconChainError(cause error) *BlockError {
	return &BlockError{Kind: BeaconChainError, Cause: errors.WithStack(cause)}
}

// NewExecutionPayloadError wraps an ExecutionPayloadError as a BlockError.
func NewExecutionPayloadError(e *ExecutionPayloadError) *BlockError {
	return &BlockError{Kind: ExecutionPayloadErrorKind, ExecutionPayloadErr: e}
}

// NewPerBlockProcessingError wraps a per_block_processing failure.
func NewPerBlockProcessingError(cause error) *BlockError {
	return &BlockError{Kind: PerBlockProcessingError, PerBlockErr: cause}
}

// Simple (no-field) constructors for the remaining kinds.
func simple(k BlockErrorKind) *BlockError { return &BlockError{Kind: k} }

// NewGenesisBlock, NewBlockIsAlreadyKnown, NewBlockSlotLimitReached,
// NewProposalSignatureInvalid, NewInvalidSignature, NewNonLinearParentRoots,
// NewNonLinearSlots, NewWeakSubjectivityConflict, and NewSlashable construct
// their respective zero-field BlockErrors.
func NewGenesisBlock() *BlockError             { return simple(GenesisBlock) }
func NewBlockIsAlreadyKnown() *BlockError      { return simple(BlockIsAlreadyKnown) }
func NewBlockSlotLimitReached() *BlockError    { return simple(BlockSlotLimitReached) }
func NewProposalSignatureInvalid() *BlockError { return simple(ProposalSignatureInvalid) }
func NewInvalidSignature() *BlockError         { return simple(InvalidSignature) }
func NewNonLinearParentRoots() *BlockError     { return simple(NonLinearParentRoots) }
func NewNonLinearSlots() *BlockError           { return simple(NonLinearSlots) }
func NewWeakSubjectivityConflict() *BlockError { return simple(WeakSubjectivityConflict) }
func NewSlashable() *BlockError                { return simple(Slashable) }
func NewNotFinalizedDescendant(parentRoot primitives.Root) *BlockError {
	return &BlockError{Kind: NotFinalizedDescendant, BlockRoot: parentRoot}
}
func NewUnknownValidator(idx primitives.ValidatorIndex) *BlockError {
	return &BlockError{Kind: UnknownValidator_, UnknownValidator: idx}
}

// IsPeerFault classifies a BlockError as attributable to the peer that sent
// the block: true for block-invalid, peer-fault kinds, ParentUnknown, and the
// mid/low-tolerance weak-peer-signal kinds; false for useless-but-not-fault
// and internal errors. The sync dispatcher uses this to
// decide whether to apply a peer-scoring penalty at all.
func (e *BlockError) IsPeerFault() bool {
	switch e.Kind {
	case ParentUnknown, ProposalSignatureInvalid, InvalidSignature, StateRootMismatch, PerBlockProcessingError,
		IncorrectBlockProposer, NonLinearParentRoots, NonLinearSlots, BlockIsNotLaterThanParent,
		InconsistentFork, BlockSlotLimitReached, ParentExecutionPayloadInvalid,
		UnknownValidator_:
		return true
	case Slashable, FutureSlot:
		return true
	case ExecutionPayloadErrorKind:
		if e.ExecutionPayloadErr != nil {
			return e.ExecutionPayloadErr.PenalizePeer()
		}
		return false
	case WeakSubjectivityConflict, GenesisBlock, BlockIsAlreadyKnown, WouldRevertFinalizedSlot,
		NotFinalizedDescendant, BeaconChainError:
		return false
	default:
		return false
	}
}

// ExecutionPayloadError is the sub-taxonomy for failures discovered while
// validating a block's execution payload.
type ExecutionPayloadError struct {
	Kind ExecutionPayloadErrorCode

	RequestErr error // RequestFailed

	Status string // RejectedByExecutionEngine: the PayloadStatus string the EL returned

	ExpectedTimestamp uint64 // InvalidPayloadTimestamp
	FoundTimestamp    uint64 // InvalidPayloadTimestamp

	ParentHash [32]byte // InvalidTerminalPoWBlock

	ActivationEpoch primitives.Epoch // InvalidActivationEpoch
	Epoch           primitives.Epoch // InvalidActivationEpoch

	TerminalBlockHash  [32]byte // InvalidTerminalBlockHash
	PayloadParentHash  [32]byte // InvalidTerminalBlockHash
}

// ExecutionPayloadErrorCode enumerates the ExecutionPayloadError variants.
type ExecutionPayloadErrorCode int

const (
	NoExecutionConnection ExecutionPayloadErrorCode = iota
	RequestFailed
	RejectedByExecutionEngine
	InvalidPayloadTimestamp
	InvalidTerminalPoWBlock
	InvalidActivationEpoch
	InvalidTerminalBlockHash
	UnverifiedNonOptimisticCandidate
)

func (e *ExecutionPayloadError) Error() string {
	switch e.Kind {
	case NoExecutionConnection:
		return "no execution engine connection"
	case RequestFailed:
		if e.RequestErr != nil {
			return fmt.Sprintf("execution engine request failed: %s", e.RequestErr.Error())
		}
		return "execution engine request failed"
	case RejectedByExecutionEngine:
		return fmt.Sprintf("rejected by execution engine: %s", e.Status)
	case InvalidPayloadTimestamp:
		return fmt.Sprintf("invalid payload timestamp: expected %d, found %d", e.ExpectedTimestamp, e.FoundTimestamp)
	case InvalidTerminalPoWBlock:
		return fmt.Sprintf("invalid terminal PoW block: parent_hash %x", e.ParentHash)
	case InvalidActivationEpoch:
		return fmt.Sprintf("invalid activation epoch: activation %d, current %d", e.ActivationEpoch, e.Epoch)
	case InvalidTerminalBlockHash:
		return fmt.Sprintf("invalid terminal block hash: terminal %x, payload parent %x", e.TerminalBlockHash, e.PayloadParentHash)
	case UnverifiedNonOptimisticCandidate:
		return "block is not an eligible optimistic-import candidate"
	default:
		return "execution payload error"
	}
}

// PenalizePeer reports whether this execution-payload error is the peer's
// fault: only InvalidPayloadTimestamp penalises.
func (e *ExecutionPayloadError) PenalizePeer() bool {
	switch e.Kind {
	case NoExecutionConnection:
		// The peer has nothing to do with this error.
		return false
	case RequestFailed:
		// Some issue with our own configuration.
		return false
	case RejectedByExecutionEngine:
		// An honest optimistic node may propagate blocks an EL later rejects.
		return false
	case InvalidPayloadTimestamp:
		// No honest peer propagates a block with a bad payload timestamp.
		return true
	case InvalidTerminalPoWBlock:
		// An honest optimistic node may propagate an invalid terminal block.
		return false
	case InvalidActivationEpoch:
		// Checked after gossip propagation; penalising would be unfair.
		return false
	case InvalidTerminalBlockHash:
		return false
	case UnverifiedNonOptimisticCandidate:
		// Not the peer's fault that we are optimistic.
		return false
	default:
		return false
	}
}
