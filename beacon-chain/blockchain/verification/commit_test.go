package verification

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	chaintesting "github.com/voyager-chain/beaconverify/beacon-chain/blockchain/testing"
	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification/mock"
	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// recordingSnapshotWriter tracks Put calls so tests can assert whether commit
// wrote the post-state back to the snapshot cache.
type recordingSnapshotWriter struct {
	puts []primitives.Root
}

func (w *recordingSnapshotWriter) Get(primitives.Root, primitives.Slot) (PreProcessingSnapshot, bool) {
	return PreProcessingSnapshot{}, false
}

func (w *recordingSnapshotWriter) Put(parentRoot primitives.Root, _ PreProcessingSnapshot) {
	w.puts = append(w.puts, parentRoot)
}

func resolvedHandle(outcome PayloadVerificationOutcome) *PayloadVerificationHandle {
	h := &PayloadVerificationHandle{done: make(chan struct{})}
	h.outcome = outcome
	close(h.done)
	return h
}

func erroredHandle(err *BlockError) *PayloadVerificationHandle {
	h := &PayloadVerificationHandle{done: make(chan struct{})}
	h.err = err
	close(h.done)
	return h
}

func commitFixture(t *testing.T) (*ExecutionPendingBlock, *chaintesting.ForkChoice, *recordingSnapshotWriter) {
	genesisRoot := primitives.Root{1}
	fc := chaintesting.NewForkChoice(genesisRoot)

	signed := &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{
		Slot:       1,
		ParentRoot: genesisRoot,
		Body:       &blocks.BeaconBlockBody{},
	}}
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)

	cc := transition.NewConsensusContext(1)
	post := chaintesting.NewBeaconState(1)
	writer := &recordingSnapshotWriter{}

	epb := &ExecutionPendingBlock{
		RO:            ro,
		Ctx:           cc,
		PostState:     post,
		Batch:         &StoreBatch{},
		PayloadHandle: resolvedHandle(PayloadVerificationOutcome{Status: PayloadValid}),
	}
	return epb, fc, writer
}

func TestCommit_ValidPayload_InsertsBlockAndWritesSnapshot(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	store := chaintesting.NewStore()

	imported, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, err)
	require.Equal(t, epb.RO.Root(), imported.Root)
	require.False(t, imported.Optimistic)

	require.Len(t, fc.Inserted, 1)
	require.Equal(t, epb.RO.Root(), fc.Inserted[0].Block.Root())
	require.Len(t, writer.puts, 1)
	require.Equal(t, epb.RO.Root(), writer.puts[0])
}

func TestCommit_OptimisticPayload_MarksImportedBlockOptimistic(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	epb.PayloadHandle = resolvedHandle(PayloadVerificationOutcome{Status: PayloadOptimistic})
	store := chaintesting.NewStore()

	imported, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, err)
	require.True(t, imported.Optimistic)
	require.Len(t, fc.Inserted, 1)
	require.True(t, fc.Inserted[0].Optimistic)
}

func TestCommit_InvalidPayload_RejectsWithoutInsertingBlock(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	epb.PayloadHandle = resolvedHandle(PayloadVerificationOutcome{Status: PayloadInvalid})
	store := chaintesting.NewStore()

	imported, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, imported)
	require.NotNil(t, err)
	require.Equal(t, ExecutionPayloadErrorKind, err.Kind)
	require.Empty(t, fc.Inserted)
}

func TestCommit_PayloadHandleError_PropagatesWithoutInserting(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	want := NewBeaconChainError(context.DeadlineExceeded)
	epb.PayloadHandle = erroredHandle(want)
	store := chaintesting.NewStore()

	imported, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, imported)
	require.Equal(t, want, err)
	require.Empty(t, fc.Inserted)
}

func TestCommit_AppliesBatchAtomically(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	store := chaintesting.NewStore()

	stateRoot, herr := epb.PostState.HashTreeRoot()
	require.NoError(t, herr)
	epb.Batch = &StoreBatch{
		StateWrites:         []StateWrite{{Root: stateRoot, State: epb.PostState}},
		ClearTemporaryFlags: []primitives.Root{stateRoot},
	}

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, err)

	got, gerr := store.GetAdvancedHotState(context.Background(), stateRoot, epb.PostState.Slot(), stateRoot)
	require.NoError(t, gerr)
	require.Equal(t, epb.PostState.Slot(), got.Slot())
}

func TestCommit_AttesterSlashingsAppliedToForkChoice(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	store := chaintesting.NewStore()

	slashing := &blocks.AttesterSlashing{}
	epb.RO.Block().Block.Body.AttesterSlashings = []*blocks.AttesterSlashing{slashing}

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, err)
	require.Len(t, fc.AttesterSlashings, 1)
	require.Same(t, slashing, fc.AttesterSlashings[0])
}

func TestCommit_InsertBlockFailure_ReportsToSlasher(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	fc.InsertErr = context.DeadlineExceeded
	store := chaintesting.NewStore()
	slasher := &recordingSlasher{}

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer, Slasher: slasher}, epb)
	require.NotNil(t, err)
	require.Equal(t, BeaconChainError, err.Kind)
	require.Len(t, slasher.accepted, 1)
}

func TestCommit_PayloadHandleError_ReportsToSlasher(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	want := NewBeaconChainError(context.DeadlineExceeded)
	epb.PayloadHandle = erroredHandle(want)
	store := chaintesting.NewStore()
	slasher := &recordingSlasher{}

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer, Slasher: slasher}, epb)
	require.Equal(t, want, err)
	require.Len(t, slasher.accepted, 1)
}

func TestCommit_Success_NeverReportsToSlasher(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	store := chaintesting.NewStore()
	slasher := &recordingSlasher{}

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer, Slasher: slasher}, epb)
	require.Nil(t, err)
	require.Empty(t, slasher.accepted)
}

func TestCommit_InsertBlockFailure_ReportsToGeneratedSlasherMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mock.NewMockSlasher(ctrl)
	m.EXPECT().AcceptBlockHeader(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	epb, fc, writer := commitFixture(t)
	fc.InsertErr = context.DeadlineExceeded
	store := chaintesting.NewStore()

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer, Slasher: m}, epb)
	require.NotNil(t, err)
}

func TestCommit_IndexedAttestationsAppliedToForkChoice(t *testing.T) {
	epb, fc, writer := commitFixture(t)
	store := chaintesting.NewStore()

	ia := &blocks.IndexedAttestation{AttestingIndices: []primitives.ValidatorIndex{3}}
	epb.Ctx.SetIndexedAttestations([]*blocks.IndexedAttestation{ia})

	_, err := Commit(context.Background(), CommitDeps{Store: store, ForkChoice: fc, Snapshots: writer}, epb)
	require.Nil(t, err)
	require.Len(t, fc.Attestations, 1)
	require.Same(t, ia, fc.Attestations[0])
}
