package verification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// parentLoadGroup collapses concurrent store round trips for the same
// parent root/slot pair into a single call, so a burst of children of the
// same uncached parent (e.g. a chain-segment batch) load it once.
var parentLoadGroup singleflight.Group

// parentLoadResult carries a store round trip's outcome through
// singleflight.Group.Do, whose Do signature returns a plain error rather
// than *BlockError.
type parentLoadResult struct {
	snap PreProcessingSnapshot
	err  *BlockError
}

// SnapshotCache is the narrow cache contract the parent loader consumes.
// Implementations decide whether a
// returned snapshot is shared (Owned == false) or exclusively handed to the
// caller (Owned == true); see cache.SnapshotCache for the production LRU
// implementation.
type SnapshotCache interface {
	Get(parentRoot primitives.Root, upToSlot primitives.Slot) (PreProcessingSnapshot, bool)
}

// LoadParent resolves the pre-processing snapshot for ro's parent, following
// a three-step search order: fork choice for existence, the snapshot cache,
// then the store. It never mutates fork choice or the store; it only reads.
func LoadParent(ctx context.Context, fc ForkChoice, snapshots SnapshotCache, store Store, ro blocks.ROBlock) (PreProcessingSnapshot, *BlockError) {
	parentRoot := ro.ParentRoot()

	if !fc.ContainsBlock(parentRoot) {
		e := NewParentUnknown(ro.Block())
		recordRejection(e.Kind)
		return PreProcessingSnapshot{}, e
	}

	if snap, ok := snapshots.Get(parentRoot, ro.Slot()); ok {
		if snap.Owned {
			snapshotCacheHit.Inc()
		} else {
			snapshotCacheHit.Inc()
			snapshotCacheClone.Inc()
			snap.PreState = snap.PreState.Copy()
			snap.Owned = true
		}
		return snap, nil
	}
	snapshotCacheMiss.Inc()

	key := fmt.Sprintf("%x:%d", parentRoot, ro.Slot())
	v, shared, _ := parentLoadGroup.Do(key, func() (interface{}, error) {
		return loadParentFromStore(ctx, store, parentRoot, ro.Slot())
	})
	result := v.(parentLoadResult)
	if result.err != nil {
		return PreProcessingSnapshot{}, result.err
	}

	snap := result.snap
	if shared {
		// Every caller coalesced onto this call, including the one that
		// actually ran it, gets the same PreState value back, so each of
		// them takes its own copy.
		parentLoadCoalesced.Inc()
		snap.PreState = snap.PreState.Copy()
	}
	return snap, nil
}

// loadParentFromStore performs the actual store round trip behind
// parentLoadGroup. It always returns a nil error, wrapping any failure in
// parentLoadResult.err instead, since singleflight would otherwise hand a
// coalesced *BlockError failure to every caller that shared this call by
// plain equality rather than by value.
func loadParentFromStore(ctx context.Context, store Store, parentRoot primitives.Root, slot primitives.Slot) (interface{}, error) {
	signedParent, err := store.GetBlindedBlock(ctx, parentRoot)
	if err != nil {
		// The parent is known to fork choice but missing from the store: an
		// internal inconsistency, not a peer fault.
		return parentLoadResult{err: NewBeaconChainError(errors.Wrapf(err, "parent %x present in fork choice but not in store", parentRoot))}, nil
	}
	parentRoBlock, err := blocks.NewROBlockWithRoot(signedParent)
	if err != nil {
		return parentLoadResult{err: NewBeaconChainError(err)}, nil
	}

	preState, err := store.GetAdvancedHotState(ctx, parentRoot, slot, parentRoBlock.Block().Block.StateRoot)
	if err != nil {
		return parentLoadResult{err: NewBeaconChainError(errors.Wrapf(err, "could not load advanced hot state for parent %x", parentRoot))}, nil
	}

	return parentLoadResult{snap: PreProcessingSnapshot{
		ParentBlock: parentRoBlock,
		PreState:    preState,
		Owned:       true,
	}}, nil
}

// cloneIfShared is a small helper exercised directly by tests that want to
// assert the snapshot cache's cloning discipline without going through the
// full LoadParent path.
func cloneIfShared(snap PreProcessingSnapshot) (state.BeaconState, bool) {
	if snap.Owned {
		return snap.PreState, false
	}
	return snap.PreState.Copy(), true
}
