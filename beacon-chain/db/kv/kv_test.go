package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	statev1 "github.com/voyager-chain/beaconverify/beacon-chain/state/v1"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

func setupDB(t *testing.T) *Store {
	t.Helper()
	db, err := NewKVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestStore_SaveAndGetBlock(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	root := primitives.Root{1, 2, 3}
	signed := &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{
		Slot: 5,
		Body: &blocks.BeaconBlockBody{},
	}, Signature: []byte{9, 9}}

	require.NoError(t, db.SaveBlock(ctx, root, signed))

	exists, err := db.BlockExists(ctx, root)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := db.GetBlindedBlock(ctx, root)
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(5), got.Block.Slot)
	require.Equal(t, []byte{9, 9}, got.Signature)
}

func TestStore_GetBlindedBlock_MissingReturnsError(t *testing.T) {
	db := setupDB(t)
	_, err := db.GetBlindedBlock(context.Background(), primitives.Root{0xff})
	require.Error(t, err)
}

func TestStore_SaveAndLoadState(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	root := primitives.Root{4, 5, 6}
	st := statev1.New()
	st.SetSlot(42)

	require.NoError(t, db.SaveState(ctx, root, st))

	got, err := db.GetAdvancedHotState(ctx, root, 100, primitives.Root{})
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(42), got.Slot())
}

func TestStore_GetAdvancedHotState_FallsBackToFallbackRoot(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	fallback := primitives.Root{7}
	st := statev1.New()
	st.SetSlot(3)
	require.NoError(t, db.SaveState(ctx, fallback, st))

	got, err := db.GetAdvancedHotState(ctx, primitives.Root{8}, 10, fallback)
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(3), got.Slot())
}

func TestStore_DoAtomically_WritesStatesAndSummaries(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	root := primitives.Root{2}
	st := statev1.New()
	st.SetSlot(7)

	batch := &verification.StoreBatch{
		StateWrites:   []verification.StateWrite{{Root: root, State: st}},
		SummaryWrites: []verification.HotStateSummary{{Root: root, Slot: 7}},
	}
	require.NoError(t, db.DoAtomically(ctx, batch))

	gotState, err := db.GetAdvancedHotState(ctx, root, 7, root)
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(7), gotState.Slot())

	gotSummary, err := db.LoadHotStateSummary(ctx, root)
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(7), gotSummary.Slot)
}

func TestStore_AnchorSlot_DefaultsToZero(t *testing.T) {
	db := setupDB(t)
	slot, err := db.GetAnchorSlot(context.Background())
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(0), slot)

	require.NoError(t, db.SetAnchorSlot(context.Background(), 11))
	slot, err = db.GetAnchorSlot(context.Background())
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(11), slot)
}
