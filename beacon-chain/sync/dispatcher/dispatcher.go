package dispatcher

import (
	"context"
	"time"

	"github.com/kevinms/leakybucket-go"
	"github.com/sirupsen/logrus"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// reprocessDrainRateLimiterKey is the single bucket every drained message
// counts against; Run only ever serves one queue.
const reprocessDrainRateLimiterKey = "reprocess-queue-drain"

// reprocessDrainRate and reprocessDrainBurst bound how fast Run retries
// queued blocks, so a burst of duplicate/late arrivals can't crowd out fresh
// gossip/RPC delivery.
const (
	reprocessDrainRate  = 32
	reprocessDrainBurst = 32
)

// ProposerObservationChecker is the read-only half of the observed-producers
// cache the late-block requeue check needs: has any block from this
// proposer at this slot already been seen, without itself recording
// anything.
type ProposerObservationChecker interface {
	HasProposerBeenObserved(slot primitives.Slot, proposer primitives.ValidatorIndex) bool
}

// ResultHandler receives the outcome of a dispatched RPC block import, used
// to relay BlockProcessed-style notifications back to a sync manager.
type ResultHandler func(root primitives.Root, imported *verification.ImportedBlock, err *verification.BlockError)

// Dispatcher wraps a verification.Pipeline with the RPC-path bookkeeping:
// deduplication, late-block requeueing, and chain-segment routing.
type Dispatcher struct {
	Pipeline   *verification.Pipeline
	Duplicate  *DuplicateCache
	Reprocess  *ReprocessQueue
	Observed   ProposerObservationChecker
	GenesisTime time.Time
	OnResult   ResultHandler
	limiter    *leakybucket.Collector
}

// New builds a Dispatcher around an already-wired pipeline.
func New(p *verification.Pipeline, observed ProposerObservationChecker, genesisTime time.Time, onResult ResultHandler) *Dispatcher {
	return &Dispatcher{
		Pipeline:    p,
		Duplicate:   NewDuplicateCache(),
		Reprocess:   NewReprocessQueue(),
		Observed:    observed,
		GenesisTime: genesisTime,
		OnResult:    onResult,
		limiter:     leakybucket.NewCollector(reprocessDrainRate, reprocessDrainBurst, false /* deleteEmptyBuckets */),
	}
}

// Run drains the reprocess queue until ctx is done, rate-limiting how fast
// queued entries are retried.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.Reprocess.Messages():
			d.throttleDrain()
			d.handleReprocessMessage(ctx, msg)
		}
	}
}

func (d *Dispatcher) throttleDrain() {
	if d.limiter == nil {
		return
	}
	if d.limiter.Remaining(reprocessDrainRateLimiterKey) < 1 {
		time.Sleep(d.limiter.TillEmpty(reprocessDrainRateLimiterKey))
	}
	d.limiter.Add(reprocessDrainRateLimiterKey, 1)
}

func (d *Dispatcher) handleReprocessMessage(ctx context.Context, msg ReprocessMessage) {
	switch m := msg.(type) {
	case RpcBlockMessage:
		m.Block.ProcessFn(ctx)
	case BlockImportedMessage:
		log.WithFields(logrus.Fields{"block_root": m.BlockRoot, "parent_root": m.ParentRoot}).Debug("import completion notice drained")
	}
}

// ProcessRPCBlock runs the duplicate-cache gate and
// late-block requeue around a single RPC-delivered block.
func (d *Dispatcher) ProcessRPCBlock(ctx context.Context, root primitives.Root, signed *blocks.SignedBeaconBlock, seenAt time.Time) {
	release, ok := d.Duplicate.CheckAndInsert(root)
	if !ok {
		log.WithField("block_root", root).Debug("gossip/rpc block already importing, requeueing")
		d.requeue(ctx, root, signed, seenAt)
		return
	}
	defer release()

	if !d.blockIsLate(signed, seenAt) && d.blockEquivocates(signed) {
		log.WithField("block_root", root).Debug("delaying processing of duplicate RPC block")
		d.requeue(ctx, root, signed, seenAt)
		return
	}

	imported, err := d.Pipeline.ProcessBlock(ctx, signed, false)
	if d.OnResult != nil {
		d.OnResult(root, imported, err)
	}
}

func (d *Dispatcher) requeue(ctx context.Context, root primitives.Root, signed *blocks.SignedBeaconBlock, seenAt time.Time) {
	msg := RpcBlockMessage{Block: QueuedRpcBlock{
		BlockRoot: root,
		ProcessFn: func(ctx context.Context) { d.ProcessRPCBlock(ctx, root, signed, seenAt) },
		IgnoreFn: func() {
			if d.OnResult != nil {
				d.OnResult(root, nil, nil)
			}
		},
	}}
	if !d.Reprocess.TrySend(msg) {
		log.WithField("block_root", root).Error("failed to inform block import: reprocess queue full")
	}
}

// blockIsLate reports whether seenAt is already past the attestation
// production deadline for the block's slot; a conservative true (treating an
// unreadable clock as late) avoids ever requeueing forever.
func (d *Dispatcher) blockIsLate(signed *blocks.SignedBeaconBlock, seenAt time.Time) bool {
	clock := d.Pipeline.Clock
	if clock == nil {
		return true
	}
	slotStart := d.GenesisTime.Add(clock.StartOf(signed.Block.Slot))
	delay := seenAt.Sub(slotStart)
	return delay > clock.UnaggregatedAttestationProductionDelay()
}

func (d *Dispatcher) blockEquivocates(signed *blocks.SignedBeaconBlock) bool {
	if d.Observed == nil {
		return false
	}
	return d.Observed.HasProposerBeenObserved(signed.Block.Slot, signed.Block.ProposerIndex)
}

// ProcessChainSegment routes a chain segment by its process ID:
// ParentLookup segments arrive highest-slot-first and are reversed before
// verification; RangeBatch and BackSyncBatch segments are processed in
// arrival order. Backfill's distinct already-finalised-state verification
// path (import_historical_block_batch in the original) is not modelled
// separately here -- see DESIGN.md's "Sync dispatcher" entry for why.
func (d *Dispatcher) ProcessChainSegment(ctx context.Context, id ChainSegmentProcessID, segment []*blocks.SignedBeaconBlock) *verification.BatchProcessResult {
	if id.Kind == ParentLookup {
		segment = reversed(segment)
	}
	result := d.Pipeline.ProcessChainSegment(ctx, segment)

	fields := logrus.Fields{
		"kind":            id.Kind,
		"segment_size":    len(segment),
		"imported_blocks": result.ImportedBlocks,
	}
	if result.Kind == verification.BatchSuccess {
		log.WithFields(fields).Debug("batch processed")
	} else {
		log.WithFields(fields).WithField("penalty", result.Penalty).Debug("batch processing failed")
	}
	return result
}

func reversed(in []*blocks.SignedBeaconBlock) []*blocks.SignedBeaconBlock {
	out := make([]*blocks.SignedBeaconBlock, len(in))
	for i, b := range in {
		out[len(in)-1-i] = b
	}
	return out
}
