// Package kv implements verification.Store on top of a bolt-backed
// key-value file, so a cmd/beaconverify run can persist imported blocks and
// hot states across invocations instead of losing them on exit. It does not
// reimplement the consensus-spec state-management machinery (archived
// points, finalized-state pruning, and so on) that a production beacon node
// store would carry; it only durably records what the verification pipeline
// itself reads and writes.
package kv

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

const databaseFileName = "beaconverify.db"

var (
	blocksBucket   = []byte("blocks")
	statesBucket   = []byte("states")
	summariesBucket = []byte("summaries")
	metadataBucket = []byte("metadata")

	anchorSlotKey = []byte("anchor-slot")
)

// Store is a bolt-backed verification.Store.
type Store struct {
	db           *bolt.DB
	databasePath string
}

var _ verification.Store = (*Store)(nil)

// NewKVStore opens (creating if necessary) a bolt database at dirPath and
// ensures its buckets exist.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, errors.Wrap(err, "could not create database directory")
	}
	datafile := path.Join(dirPath, databaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, errors.Wrap(err, "could not open bolt database")
	}

	kv := &Store{db: boltDB, databasePath: dirPath}
	if err := kv.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{blocksBucket, statesBucket, summariesBucket, metadataBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "could not initialize database buckets")
	}
	return kv, nil
}

// Close releases the underlying bolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath returns the directory this store was opened against.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}

// GetAnchorSlot satisfies verification.Store.
func (s *Store) GetAnchorSlot(ctx context.Context) (primitives.Slot, error) {
	_, span := trace.StartSpan(ctx, "kv.GetAnchorSlot")
	defer span.End()

	var slot primitives.Slot
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(metadataBucket).Get(anchorSlotKey)
		if v == nil {
			return nil
		}
		return decodeJSON(v, &slot)
	})
	return slot, err
}

// SetAnchorSlot records the store's anchor slot (the earliest slot this
// store can answer GetAdvancedHotState queries for); it has no counterpart
// in verification.Store since production stores fix it once at genesis.
func (s *Store) SetAnchorSlot(ctx context.Context, slot primitives.Slot) error {
	_, span := trace.StartSpan(ctx, "kv.SetAnchorSlot")
	defer span.End()

	enc, err := encodeJSON(slot)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Put(anchorSlotKey, enc)
	})
}
