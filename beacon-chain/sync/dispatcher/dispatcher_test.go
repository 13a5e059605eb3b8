package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	chaintesting "github.com/voyager-chain/beaconverify/beacon-chain/blockchain/testing"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

type observedSet map[string]bool

func (o observedSet) HasProposerBeenObserved(slot primitives.Slot, proposer primitives.ValidatorIndex) bool {
	return o[key(slot, proposer)]
}

func key(slot primitives.Slot, proposer primitives.ValidatorIndex) string {
	return fmt.Sprintf("%d/%d", slot, proposer)
}

func newTestDispatcher(t *testing.T, observed ProposerObservationChecker) (*Dispatcher, *[]struct {
	root primitives.Root
	err  *verification.BlockError
}) {
	t.Helper()
	results := &[]struct {
		root primitives.Root
		err  *verification.BlockError
	}{}
	pipeline := &verification.Pipeline{
		Clock:      chaintesting.NewSlotClock(10),
		ForkChoice: chaintesting.NewForkChoice(primitives.Root{}),
	}
	d := New(pipeline, observed, time.Unix(0, 0), func(root primitives.Root, imported *verification.ImportedBlock, err *verification.BlockError) {
		*results = append(*results, struct {
			root primitives.Root
			err  *verification.BlockError
		}{root, err})
	})
	return d, results
}

func testBlock(slot primitives.Slot, proposer primitives.ValidatorIndex) *blocks.SignedBeaconBlock {
	return &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{
		Slot:          slot,
		ProposerIndex: proposer,
		// A parent root fork choice has never heard of keeps the relevancy
		// filter's parent lookup from reaching into the (unset) snapshot
		// cache and store collaborators this fixture doesn't need.
		ParentRoot: primitives.Root{0xff},
		Body:       &blocks.BeaconBlockBody{},
	}}
}

func TestDispatcher_DuplicateGateRequeues(t *testing.T) {
	d, results := newTestDispatcher(t, nil)
	root := primitives.Root{1}
	release, ok := d.Duplicate.CheckAndInsert(root)
	require.True(t, ok)
	defer release()

	d.ProcessRPCBlock(context.Background(), root, testBlock(1, 1), time.Unix(0, 0))

	require.Empty(t, *results, "a block whose root is already in flight must not reach the pipeline")
	select {
	case msg := <-d.Reprocess.Messages():
		rpc, ok := msg.(RpcBlockMessage)
		require.True(t, ok)
		require.Equal(t, root, rpc.Block.BlockRoot)
	default:
		t.Fatal("expected the duplicate block to be requeued")
	}
}

func TestDispatcher_EarlyBlockWithEquivocationRequeues(t *testing.T) {
	observed := observedSet{key(5, 2): true}
	d, results := newTestDispatcher(t, observed)
	root := primitives.Root{2}

	// seenAt equal to genesis means the block arrived well before the slot's
	// attestation deadline, i.e. not late, so the equivocation check applies.
	d.ProcessRPCBlock(context.Background(), root, testBlock(5, 2), time.Unix(0, 0))

	require.Empty(t, *results)
	select {
	case <-d.Reprocess.Messages():
	default:
		t.Fatal("an early, equivocating block should be requeued rather than imported immediately")
	}
}

func TestDispatcher_NonEquivocatingBlockReachesPipeline(t *testing.T) {
	d, results := newTestDispatcher(t, observedSet{})
	root := primitives.Root{3}

	d.ProcessRPCBlock(context.Background(), root, testBlock(5, 2), time.Unix(0, 0))

	require.Len(t, *results, 1, "a non-equivocating block should be handed to the pipeline and produce a result")
	require.Equal(t, root, (*results)[0].root)
}

func TestDispatcher_ProcessChainSegment_ReversesParentLookup(t *testing.T) {
	a := testBlock(1, 1)
	b := testBlock(2, 2)
	c := testBlock(3, 3)
	segment := []*blocks.SignedBeaconBlock{c, b, a}

	// ParentLookup segments arrive highest-slot-first; reversed is what
	// ProcessChainSegment applies internally before handing the segment to
	// the pipeline.
	require.Equal(t, []*blocks.SignedBeaconBlock{a, b, c}, reversed(segment))
}

func TestDispatcher_ProcessChainSegment_EmptySegmentSucceeds(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	result := d.ProcessChainSegment(context.Background(), NewRangeBatchID(1, 0), nil)
	require.Equal(t, verification.BatchSuccess, result.Kind)
	require.False(t, result.WasNonEmpty)
}

func TestDispatcher_Run_DrainsRequeuedBlockThroughProcessFn(t *testing.T) {
	d, results := newTestDispatcher(t, observedSet{})
	root := primitives.Root{4}

	release, ok := d.Duplicate.CheckAndInsert(root)
	require.True(t, ok)
	d.ProcessRPCBlock(context.Background(), root, testBlock(6, 2), time.Unix(0, 0))
	require.Empty(t, *results, "the block is still in flight so it must have been requeued, not processed")
	release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(*results) == 1
	}, time.Second, time.Millisecond, "Run should drain the queued message and reprocess the block")
	require.Equal(t, root, (*results)[0].root)

	cancel()
	<-done
}

func TestDispatcher_ThrottleDrain_ConsumesBucketCapacity(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	before := d.limiter.Remaining(reprocessDrainRateLimiterKey)
	d.throttleDrain()
	require.Equal(t, before-1, d.limiter.Remaining(reprocessDrainRateLimiterKey))
}
