package verification

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	chaintesting "github.com/voyager-chain/beaconverify/beacon-chain/blockchain/testing"
	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition/simpletransition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/featureconfig"
)

type noopSnapshotWriter struct{}

func (noopSnapshotWriter) Get(primitives.Root, primitives.Slot) (PreProcessingSnapshot, bool) {
	return PreProcessingSnapshot{}, false
}
func (noopSnapshotWriter) Put(primitives.Root, PreProcessingSnapshot) {}

// executionPendingFixture wires a minimal IntoExecutionPending call around a
// single child block of a known genesis parent.
type executionPendingFixture struct {
	fc     *chaintesting.ForkChoice
	engine *chaintesting.ExecutionEngine
	deps   ExecutionPendingDeps
	svb    *SignatureVerifiedBlock
}

func newExecutionPendingFixture(t *testing.T, body *blocks.BeaconBlockBody) *executionPendingFixture {
	genesisRoot := primitives.Root{1}
	fc := chaintesting.NewForkChoice(genesisRoot)
	store := chaintesting.NewStore()
	engine := chaintesting.NewExecutionEngine()

	genesisState := chaintesting.NewBeaconState(0)
	store.SaveState(genesisRoot, genesisState)

	signed := &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{
		Slot:       1,
		ParentRoot: genesisRoot,
		StateRoot:  expectedStateRoot(t, 1),
		Body:       body,
	}}
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)

	svb := &SignatureVerifiedBlock{
		RO:  ro,
		Ctx: transition.NewConsensusContext(1),
		ParentSnapshot: PreProcessingSnapshot{
			PreState: genesisState,
			Owned:    true,
		},
	}

	deps := ExecutionPendingDeps{
		ForkChoice:       fc,
		Snapshots:        noopSnapshotWriter{},
		Store:            store,
		Engine:           engine,
		Transition:       simpletransition.New(),
		Spawner:          GoroutineSpawner{},
		ParentHadPayload: func([32]byte) (bool, error) { return false, nil },
	}
	return &executionPendingFixture{fc: fc, engine: engine, deps: deps, svb: svb}
}

func postMergeBody() *blocks.BeaconBlockBody {
	return &blocks.BeaconBlockBody{
		ExecutionPayload: &blocks.ExecutionPayload{BlockHash: [32]byte{7}, BlockNumber: 1},
	}
}

func TestIntoExecutionPending_UnknownParent_RejectsBeforeStateTransition(t *testing.T) {
	f := newExecutionPendingFixture(t, &blocks.BeaconBlockBody{})
	f.svb.RO.Block().Block.ParentRoot = primitives.Root{0xff}

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, epb)
	require.NotNil(t, err)
	require.Equal(t, ParentUnknown, err.Kind)
}

func TestIntoExecutionPending_ParentPayloadInvalid_RejectedBeforeStateTransition(t *testing.T) {
	f := newExecutionPendingFixture(t, &blocks.BeaconBlockBody{})
	f.fc.MarkExecutionPayloadInvalid(f.svb.RO.Block().Block.ParentRoot)

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, epb)
	require.NotNil(t, err)
	require.Equal(t, ParentExecutionPayloadInvalid, err.Kind)
}

func TestIntoExecutionPending_PreMergeBlock_SkipsEngineAndReportsValid(t *testing.T) {
	f := newExecutionPendingFixture(t, &blocks.BeaconBlockBody{})
	f.engine.Err = context.DeadlineExceeded // would fail the test if ever called

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, err)
	require.NotNil(t, epb)

	outcome, berr := epb.PayloadHandle.Await(context.Background())
	require.Nil(t, berr)
	require.Equal(t, PayloadValid, outcome.Status)
	require.False(t, outcome.IsValidMergeTransitionBlock)
}

func TestIntoExecutionPending_MergeTransitionBlock_InvalidTerminalBlock_Rejected(t *testing.T) {
	f := newExecutionPendingFixture(t, postMergeBody())
	f.engine.MergeStatus = PayloadInvalid
	f.deps.ParentHadPayload = func([32]byte) (bool, error) { return false, nil }

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, err)
	require.NotNil(t, epb)

	_, berr := epb.PayloadHandle.Await(context.Background())
	require.NotNil(t, berr)
	require.Equal(t, ExecutionPayloadErrorKind, berr.Kind)
	require.Equal(t, InvalidTerminalPoWBlock, berr.ExecutionPayloadErr.Kind)
}

func TestIntoExecutionPending_PostMergeBlock_RejectedByEngine(t *testing.T) {
	f := newExecutionPendingFixture(t, postMergeBody())
	f.deps.ParentHadPayload = func([32]byte) (bool, error) { return true, nil }
	f.engine.Status = PayloadInvalid

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, err)

	_, berr := epb.PayloadHandle.Await(context.Background())
	require.NotNil(t, berr)
	require.Equal(t, ExecutionPayloadErrorKind, berr.Kind)
	require.Equal(t, RejectedByExecutionEngine, berr.ExecutionPayloadErr.Kind)
}

func TestIntoExecutionPending_PostMergeBlock_OptimisticStatus_AllowedWhenCandidate(t *testing.T) {
	f := newExecutionPendingFixture(t, postMergeBody())
	f.deps.ParentHadPayload = func([32]byte) (bool, error) { return true, nil }
	f.engine.Status = PayloadOptimistic
	f.engine.OptimisticAllowed = true

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, err)

	outcome, berr := epb.PayloadHandle.Await(context.Background())
	require.Nil(t, berr)
	require.Equal(t, PayloadOptimistic, outcome.Status)
}

func TestIntoExecutionPending_PostMergeBlock_OptimisticStatus_RejectedWhenNotCandidate(t *testing.T) {
	f := newExecutionPendingFixture(t, postMergeBody())
	f.deps.ParentHadPayload = func([32]byte) (bool, error) { return true, nil }
	f.engine.Status = PayloadOptimistic
	f.engine.OptimisticAllowed = false

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, err)

	_, berr := epb.PayloadHandle.Await(context.Background())
	require.NotNil(t, berr)
	require.Equal(t, ExecutionPayloadErrorKind, berr.Kind)
	require.Equal(t, UnverifiedNonOptimisticCandidate, berr.ExecutionPayloadErr.Kind)
}

type refusingSpawner struct{}

func (refusingSpawner) Spawn(fn func())         { go fn() }
func (refusingSpawner) TrySpawn(fn func()) bool { return false }

func TestSpawnPayloadVerification_RuntimeShutdown_HandleErrorsImmediately(t *testing.T) {
	f := newExecutionPendingFixture(t, &blocks.BeaconBlockBody{})
	f.deps.Spawner = refusingSpawner{}

	epb, err := IntoExecutionPending(context.Background(), f.svb, f.deps)
	require.Nil(t, err)
	require.NotNil(t, epb)

	outcome, berr := epb.PayloadHandle.Await(context.Background())
	require.NotNil(t, berr)
	require.Equal(t, BeaconChainError, berr.Kind)
	require.Equal(t, PayloadVerificationOutcome{}, outcome)
}

func TestPayloadVerificationHandle_Await_ContextCancelled(t *testing.T) {
	h := &PayloadVerificationHandle{done: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, berr := h.Await(ctx)
	require.NotNil(t, berr)
	require.Equal(t, BeaconChainError, berr.Kind)
}

func TestIntoExecutionPending_LoadsUncachedParentConcurrentlyWithPayloadDispatch(t *testing.T) {
	// svb.ParentSnapshot is left zero-valued, forcing IntoExecutionPending
	// down the errgroup branch that loads the parent from the store
	// alongside dispatching payload verification.
	genesisRoot := primitives.Root{1}
	fc := chaintesting.NewForkChoice(genesisRoot)
	store := chaintesting.NewStore()
	genesisSigned := &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{Slot: 0, Body: &blocks.BeaconBlockBody{}}}
	store.SaveBlock(genesisRoot, genesisSigned)
	store.SaveState(genesisRoot, chaintesting.NewBeaconState(0))

	signed := &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{Slot: 1, ParentRoot: genesisRoot, StateRoot: expectedStateRoot(t, 1), Body: &blocks.BeaconBlockBody{}}}
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)
	svb := &SignatureVerifiedBlock{RO: ro, Ctx: transition.NewConsensusContext(1)}

	deps := ExecutionPendingDeps{
		ForkChoice:       fc,
		Snapshots:        noopSnapshotWriter{},
		Store:            store,
		Engine:           chaintesting.NewExecutionEngine(),
		Transition:       simpletransition.New(),
		Spawner:          GoroutineSpawner{},
		ParentHadPayload: func([32]byte) (bool, error) { return false, nil },
	}

	epb, berr := IntoExecutionPending(context.Background(), svb, deps)
	require.Nil(t, berr)
	require.NotNil(t, epb)
	require.NotNil(t, epb.PostState)
}

func TestMaybeDumpBlockSSZ_DisabledByDefault_WritesNothing(t *testing.T) {
	dir := t.TempDir()
	featureconfig.Init(&featureconfig.Flags{SSZDumpDir: dir})
	defer featureconfig.Init(nil)

	f := newExecutionPendingFixture(t, &blocks.BeaconBlockBody{})
	maybeDumpBlockSSZ(f.svb.RO)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMaybeDumpBlockSSZ_Enabled_WritesDumpFile(t *testing.T) {
	dir := t.TempDir()
	featureconfig.Init(&featureconfig.Flags{WriteBlockProcessingSSZ: true, SSZDumpDir: dir})
	defer featureconfig.Init(nil)

	f := newExecutionPendingFixture(t, &blocks.BeaconBlockBody{})
	maybeDumpBlockSSZ(f.svb.RO)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
