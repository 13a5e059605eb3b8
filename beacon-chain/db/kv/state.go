package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	statev1 "github.com/voyager-chain/beaconverify/beacon-chain/state/v1"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// SaveState persists st under root, overwriting any previous entry. Only
// *statev1.BeaconState values can be round-tripped, since the store encodes
// via that type's JSON (de)serialization.
func (s *Store) SaveState(ctx context.Context, root primitives.Root, st state.BeaconState) error {
	_, span := trace.StartSpan(ctx, "kv.SaveState")
	defer span.End()

	concrete, ok := st.(*statev1.BeaconState)
	if !ok {
		return errors.Errorf("kv store can only persist *statev1.BeaconState, got %T", st)
	}
	enc, err := encodeJSON(concrete)
	if err != nil {
		return errors.Wrap(err, "could not encode state")
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(statesBucket).Put(root[:], enc)
	})
}

// GetAdvancedHotState satisfies verification.Store. upToSlot is informational
// only: the store never replays slots itself, it returns whichever of
// root/fallbackStateRoot has a state recorded.
func (s *Store) GetAdvancedHotState(ctx context.Context, root primitives.Root, upToSlot primitives.Slot, fallbackStateRoot primitives.Root) (state.BeaconState, error) {
	_, span := trace.StartSpan(ctx, "kv.GetAdvancedHotState")
	defer span.End()

	for _, candidate := range []primitives.Root{root, fallbackStateRoot} {
		st, err := s.loadState(candidate)
		if err == nil {
			return st, nil
		}
	}
	return nil, errors.Errorf("no state recorded for root %x or fallback %x", root, fallbackStateRoot)
}

func (s *Store) loadState(root primitives.Root) (state.BeaconState, error) {
	st := statev1.New()
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(statesBucket).Get(root[:])
		if v == nil {
			return errors.Errorf("no state recorded for root %x", root)
		}
		return decodeJSON(v, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// LoadHotStateSummary satisfies verification.Store.
func (s *Store) LoadHotStateSummary(ctx context.Context, root primitives.Root) (*verification.HotStateSummary, error) {
	_, span := trace.StartSpan(ctx, "kv.LoadHotStateSummary")
	defer span.End()

	var sum verification.HotStateSummary
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(summariesBucket).Get(root[:])
		if v == nil {
			return errors.Errorf("no summary for root %x", root)
		}
		return decodeJSON(v, &sum)
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// DoAtomically satisfies verification.Store: every write staged in batch
// commits (or fails) inside a single bolt transaction, giving a block's
// post-commit writes all-or-nothing atomicity.
func (s *Store) DoAtomically(ctx context.Context, batch *verification.StoreBatch) error {
	_, span := trace.StartSpan(ctx, "kv.DoAtomically")
	defer span.End()

	return s.update(func(tx *bolt.Tx) error {
		states := tx.Bucket(statesBucket)
		for _, w := range batch.StateWrites {
			concrete, ok := w.State.(*statev1.BeaconState)
			if !ok {
				return errors.Errorf("kv store can only persist *statev1.BeaconState, got %T", w.State)
			}
			enc, err := encodeJSON(concrete)
			if err != nil {
				return err
			}
			if err := states.Put(w.Root[:], enc); err != nil {
				return err
			}
		}
		summaries := tx.Bucket(summariesBucket)
		for _, w := range batch.SummaryWrites {
			enc, err := encodeJSON(w)
			if err != nil {
				return err
			}
			if err := summaries.Put(w.Root[:], enc); err != nil {
				return err
			}
		}
		return nil
	})
}
