package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// SaveBlock persists signed under root, overwriting any previous entry.
func (s *Store) SaveBlock(ctx context.Context, root primitives.Root, signed *blocks.SignedBeaconBlock) error {
	_, span := trace.StartSpan(ctx, "kv.SaveBlock")
	defer span.End()

	enc, err := encodeJSON(signed)
	if err != nil {
		return errors.Wrap(err, "could not encode block")
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(blocksBucket).Put(root[:], enc)
	})
}

// GetBlindedBlock satisfies verification.Store.
func (s *Store) GetBlindedBlock(ctx context.Context, root primitives.Root) (*blocks.SignedBeaconBlock, error) {
	_, span := trace.StartSpan(ctx, "kv.GetBlindedBlock")
	defer span.End()

	var signed blocks.SignedBeaconBlock
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(blocksBucket).Get(root[:])
		if v == nil {
			return errors.Errorf("block %x not found", root)
		}
		return decodeJSON(v, &signed)
	})
	if err != nil {
		return nil, err
	}
	return &signed, nil
}

// BlockExists satisfies verification.Store.
func (s *Store) BlockExists(ctx context.Context, root primitives.Root) (bool, error) {
	_, span := trace.StartSpan(ctx, "kv.BlockExists")
	defer span.End()

	var exists bool
	err := s.view(func(tx *bolt.Tx) error {
		exists = tx.Bucket(blocksBucket).Get(root[:]) != nil
		return nil
	})
	return exists, err
}
