package verification

import (
	"context"
	"time"

	"go.opencensus.io/trace"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
)

// Pipeline wires every stage together behind the two inbound entry points:
// process_block and process_chain_segment.
type Pipeline struct {
	Clock            SlotClock
	ForkChoice       ForkChoice
	Snapshots        SnapshotCache
	Store            Store
	Engine           ExecutionEngine
	Transition       transition.StateTransition
	ProposerCache    BeaconProposerCache
	Observed         ObservedBlockProducers
	Pubkeys          PubkeyLookup
	ResolveProposer  ProposerResolver
	AttResolver      AttestationResolver
	Spawner          TaskSpawner
	Slasher          Slasher
	ParentHadPayload func(parentRoot [32]byte) (bool, error)
	GossipDisparity  time.Duration
	// GenesisTime is the wall-clock genesis time (unix seconds) forwarded to
	// the gossip stage's execution-payload timestamp check.
	GenesisTime uint64
}

// ProcessBlock is the gossip/RPC entry point:
// process_block(block_root, block, notify_execution_layer,
// commit_callback) -> Result<block_root, BlockError>. viaGossip selects
// whether the block gets gossip-disparity tolerance and proposer-signature
// caching, or goes straight to full signature verification as an RPC block
// would.
func (p *Pipeline) ProcessBlock(ctx context.Context, signed *blocks.SignedBeaconBlock, viaGossip bool) (*ImportedBlock, *BlockError) {
	ctx, span := trace.StartSpan(ctx, "verification.ProcessBlock")
	defer span.End()

	var svb *SignatureVerifiedBlock

	if viaGossip {
		gv, sinfo := GossipVerify(ctx, p.gossipDeps(), signed)
		if sinfo != nil {
			p.reportSlasher(ctx, sinfo)
			return nil, sinfo.AsBlockError()
		}
		verified, berr := FromGossipVerified(ctx, gv, SignatureDeps{Pubkeys: p.Pubkeys, Resolver: p.AttResolver})
		if berr != nil {
			return nil, berr
		}
		svb = verified
	} else {
		ro, rerr := CheckRelevancy(ctx, p.Clock, p.ForkChoice, signed, RelevancyOpts{})
		if rerr != nil {
			return nil, rerr
		}
		parent, lerr := LoadParent(ctx, p.ForkChoice, p.Snapshots, p.Store, ro)
		if lerr != nil {
			return nil, lerr
		}
		verified, berr := FromUnverified(ctx, ro, parent, SignatureDeps{Pubkeys: p.Pubkeys, Resolver: p.AttResolver})
		if berr != nil {
			return nil, berr
		}
		svb = verified
	}

	epb, berr := IntoExecutionPending(ctx, svb, p.executionDeps())
	if berr != nil {
		p.reportSlasher(ctx, SlashInfoFromVerifiedBlock(svb.RO, berr))
		return nil, berr
	}

	return Commit(ctx, CommitDeps{Store: p.Store, ForkChoice: p.ForkChoice, Slasher: p.Slasher, Snapshots: p.Snapshots}, epb)
}

func (p *Pipeline) gossipDeps() GossipDeps {
	return GossipDeps{
		Clock:           p.Clock,
		ForkChoice:      p.ForkChoice,
		Snapshots:       p.Snapshots,
		Store:           p.Store,
		Transition:      p.Transition,
		ProposerCache:   p.ProposerCache,
		Observed:        p.Observed,
		Pubkeys:         p.Pubkeys,
		ResolveProposer: p.ResolveProposer,
		DisparityTol:    p.GossipDisparity,
		GenesisTime:     p.GenesisTime,
	}
}

func (p *Pipeline) executionDeps() ExecutionPendingDeps {
	return ExecutionPendingDeps{
		ForkChoice:       p.ForkChoice,
		Snapshots:        p.Snapshots,
		Store:            p.Store,
		Engine:           p.Engine,
		Transition:       p.Transition,
		Spawner:          p.Spawner,
		ParentHadPayload: p.ParentHadPayload,
	}
}

func (p *Pipeline) reportSlasher(ctx context.Context, info *BlockSlashInfo) {
	if p.Slasher == nil {
		return
	}
	_ = ReportToSlasher(SlasherReportContext{Ctx: ctx, RecheckProposerSignature: NewSlasherRecheck(p.Pubkeys)}, info, p.Slasher)
}
