package verification

import (
	"context"
	"errors"
	"time"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/bls"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// ObservationResult is the verdict observe_proposal renders for a
// (proposer, slot) pair.
type ObservationResult int

const (
	// UniqueNonSlashable: the first block seen from this proposer at this slot.
	UniqueNonSlashable ObservationResult = iota
	// Duplicate: the exact same block root was already observed.
	Duplicate
	// ObservedSlashable: a different block root from the same proposer/slot
	// was already observed -- an equivocation.
	ObservedSlashable
)

// ObservedBlockProducers tracks (proposer, slot) -> header observations for
// equivocation detection. Implementations must serialize
// ObserveProposal under a single write lock.
type ObservedBlockProducers interface {
	ObserveProposal(root primitives.Root, header *blocks.BeaconBlockHeader) (ObservationResult, error)
}

// BeaconProposerCache answers "who proposes at block_slot given this
// shuffling-decision root" without reloading the parent on every block.
type BeaconProposerCache interface {
	Get(shufflingDecisionRoot primitives.Root, slot primitives.Slot) (primitives.ValidatorIndex, bool)
	Put(shufflingDecisionRoot primitives.Root, slot primitives.Slot, proposer primitives.ValidatorIndex)
}

// ProposerResolver computes the proposer index for slot given a state whose
// committee caches are already built for that epoch. The exact shuffling
// algorithm is a state-transition collaborator concern; the
// gossip stage only calls through this once the cache misses.
type ProposerResolver func(st interface{ CurrentEpoch() primitives.Epoch }, slot primitives.Slot) (primitives.ValidatorIndex, error)

// GossipDeps bundles every collaborator the gossip stage needs.
type GossipDeps struct {
	Clock            SlotClock
	ForkChoice       ForkChoice
	Snapshots        SnapshotCache
	Store            Store
	Transition       transition.StateTransition
	ProposerCache    BeaconProposerCache
	Observed         ObservedBlockProducers
	Pubkeys          PubkeyLookup
	ResolveProposer  ProposerResolver
	DisparityTol     time.Duration
	// GenesisTime is the wall-clock genesis time (unix seconds) the
	// execution-payload timestamp check is measured from.
	GenesisTime uint64
}

// GossipVerifiedBlock is the pipeline's stage-2 value: a block whose
// proposer signature and identity are trusted, ready for the
// execution-pending stage to pick up.
type GossipVerifiedBlock struct {
	RO       blocks.ROBlock
	Ctx      *transition.ConsensusContext
	ROParent PreProcessingSnapshot
}

// GossipVerify runs the full gossip state machine. On
// failure it returns both a *BlockError and a *BlockSlashInfo so the caller
// can still route the header to a configured slasher.
func GossipVerify(ctx context.Context, deps GossipDeps, signed *blocks.SignedBeaconBlock) (*GossipVerifiedBlock, *BlockSlashInfo) {
	ro, rerr := CheckRelevancy(ctx, deps.Clock, deps.ForkChoice, signed, RelevancyOpts{GossipDisparityTolerance: deps.DisparityTol})
	if rerr != nil {
		return nil, NewSlashInfoNotChecked(nil, rerr)
	}

	if !deps.ForkChoice.IsFinalizedCheckpointOrDescendant(ro.ParentRoot()) {
		e := NewNotFinalizedDescendant(ro.ParentRoot())
		recordRejection(e.Kind)
		return nil, NewSlashInfoNotChecked(nil, e)
	}

	if !deps.ForkChoice.ContainsBlock(ro.ParentRoot()) {
		e := NewParentUnknown(signed)
		recordRejection(e.Kind)
		return nil, NewSlashInfoNotChecked(nil, e)
	}

	parentNode, ok := deps.ForkChoice.GetBlock(ro.ParentRoot())
	if !ok {
		e := NewParentUnknown(signed)
		recordRejection(e.Kind)
		return nil, NewSlashInfoNotChecked(nil, e)
	}
	if parentNode.Slot >= ro.Slot() {
		e := NewBlockIsNotLaterThanParent(ro.Slot(), parentNode.Slot)
		recordRejection(e.Kind)
		return nil, NewSlashInfoNotChecked(nil, e)
	}

	cc := transition.NewConsensusContext(ro.Slot())

	proposer, snap, perr := resolveProposer(ctx, deps, ro)
	if perr != nil {
		return nil, NewSlashInfoNotChecked(nil, perr)
	}
	cc.SetProposerIndex(proposer)

	bodyRoot, berr := ro.Block().Block.BodyHashTreeRoot()
	if berr != nil {
		return nil, NewSlashInfoNotChecked(nil, NewBeaconChainError(berr))
	}
	header := ro.Block().Block.Header(bodyRoot)
	signedHeader := signed.SigningHeader(bodyRoot)

	batch := NewSignatureBatch()
	pub, err := deps.Pubkeys(signed.Block.ProposerIndex)
	if err != nil {
		if errors.Is(err, ErrUnknownValidator) {
			e := NewUnknownValidator(signed.Block.ProposerIndex)
			recordRejection(e.Kind)
			return nil, NewSlashInfoNotChecked(signedHeader, e)
		}
		return nil, NewSlashInfoNotChecked(signedHeader, NewBeaconChainError(err))
	}
	if err := batch.Add(pub, ro.Root().Bytes(), signed.Signature); err != nil {
		return nil, NewSlashInfoInvalid(NewProposalSignatureInvalid())
	}
	if !batch.Verify() {
		e := NewProposalSignatureInvalid()
		recordRejection(e.Kind)
		return nil, NewSlashInfoInvalid(e)
	}

	obs, err := deps.Observed.ObserveProposal(ro.Root(), header)
	if err != nil {
		return nil, NewSlashInfoValid(signedHeader, NewBeaconChainError(err))
	}
	switch obs {
	case Duplicate:
		e := NewBlockIsAlreadyKnown()
		recordRejection(e.Kind)
		return nil, NewSlashInfoValid(signedHeader, e)
	case ObservedSlashable:
		e := NewSlashable()
		recordRejection(e.Kind)
		return nil, NewSlashInfoValid(signedHeader, e)
	}

	if proposer != ro.ProposerIndex() {
		e := NewIncorrectBlockProposer(ro.ProposerIndex(), proposer)
		recordRejection(e.Kind)
		return nil, NewSlashInfoValid(signedHeader, e)
	}

	if e := checkExecutionPayloadGossip(ro, deps.GenesisTime); e != nil {
		recordRejection(e.Kind)
		return nil, NewSlashInfoValid(signedHeader, e)
	}

	return &GossipVerifiedBlock{RO: ro, Ctx: cc, ROParent: snap}, nil
}

func resolveProposer(ctx context.Context, deps GossipDeps, ro blocks.ROBlock) (primitives.ValidatorIndex, PreProcessingSnapshot, *BlockError) {
	if idx, ok := deps.ProposerCache.Get(ro.ParentRoot(), ro.Slot()); ok {
		return idx, PreProcessingSnapshot{}, nil
	}

	snap, lerr := LoadParent(ctx, deps.ForkChoice, deps.Snapshots, deps.Store, ro)
	if lerr != nil {
		return 0, PreProcessingSnapshot{}, lerr
	}
	adv, aerr := CheapStateAdvance(ctx, deps.Transition, snap.PreState, ro.Slot())
	if aerr != nil {
		return 0, PreProcessingSnapshot{}, aerr
	}
	snap.PreState = adv.State
	snap.Owned = adv.Owned

	idx, err := deps.ResolveProposer(adv.State, ro.Slot())
	if err != nil {
		return 0, PreProcessingSnapshot{}, NewBeaconChainError(err)
	}
	deps.ProposerCache.Put(ro.ParentRoot(), ro.Slot(), idx)
	return idx, snap, nil
}

// checkExecutionPayloadGossip validates the structural, non-EL-facing
// checks a post-merge block's payload must pass at gossip time
//: timestamp-vs-slot consistency and a well-formed
// block_hash. Fork-compatibility (payload present iff post-merge fork) is
// covered by IsPostMerge/IsMergeTransitionBlock upstream.
func checkExecutionPayloadGossip(ro blocks.ROBlock, genesisTime uint64) *BlockError {
	block := ro.Block().Block
	if !block.IsPostMerge() {
		return nil
	}
	payload := block.Body.ExecutionPayload
	expected := genesisTime + uint64(ro.Slot())*params.BeaconConfig().SecondsPerSlot
	if payload.Timestamp != expected {
		return NewExecutionPayloadError(&ExecutionPayloadError{
			Kind:              InvalidPayloadTimestamp,
			ExpectedTimestamp: expected,
			FoundTimestamp:    payload.Timestamp,
		})
	}
	if payload.BlockHash == ([32]byte{}) {
		return NewInconsistentForkError()
	}
	return nil
}

// NewInconsistentForkError constructs the structural fork-mismatch rejection.
func NewInconsistentForkError() *BlockError { return simple(InconsistentFork) }

// SlasherReportContext bundles what ReportToSlasher needs to perform a
// standalone proposer-signature recheck for a SignatureNotChecked variant.
type SlasherReportContext struct {
	Ctx                      context.Context
	RecheckProposerSignature func(header *blocks.SignedBeaconBlockHeader) (bool, error)
}

// NewSlasherRecheck builds a RecheckProposerSignature closure from a pubkey
// lookup, used by callers assembling a SlasherReportContext.
func NewSlasherRecheck(pubkeys PubkeyLookup) func(*blocks.SignedBeaconBlockHeader) (bool, error) {
	return func(header *blocks.SignedBeaconBlockHeader) (bool, error) {
		if header == nil {
			return false, nil
		}
		pub, err := pubkeys(header.Header.ProposerIndex)
		if err != nil {
			return false, err
		}
		sig, err := bls.SignatureFromBytes(header.Signature)
		if err != nil {
			return false, nil
		}
		return sig.Verify(pub, header.Header.BodyRoot[:]), nil
	}
}
