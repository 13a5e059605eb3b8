package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/bls"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// ErrPubkeyNotFound is returned when neither the cache nor the loader knows
// about a validator index; it is the same sentinel the verification package
// checks for to translate a block proposer's miss into UnknownValidator.
var ErrPubkeyNotFound = verification.ErrUnknownValidator

// PubkeyLoader resolves a validator index to its public key on a cache miss,
// typically by reading the validator registry out of a canonical state.
type PubkeyLoader func(idx primitives.ValidatorIndex) (*bls.PublicKey, error)

// PubkeyCache backs verification.PubkeyLookup against the validator
// registry. Validator public keys never change once assigned an index, so
// entries are never evicted or invalidated, only appended to.
type PubkeyCache struct {
	keys    map[primitives.ValidatorIndex]*bls.PublicKey
	sem     *semaphore.Weighted
	timeout time.Duration
	loader  PubkeyLoader
}

// NewPubkeyCache builds a pubkey cache that falls back to loader on a miss.
func NewPubkeyCache(loader PubkeyLoader) *PubkeyCache {
	return &PubkeyCache{
		keys:    make(map[primitives.ValidatorIndex]*bls.PublicKey),
		sem:     semaphore.NewWeighted(1),
		timeout: params.ValidatorPubkeyCacheLockTimeout,
		loader:  loader,
	}
}

// Get satisfies verification.PubkeyLookup.
func (c *PubkeyCache) Get(idx primitives.ValidatorIndex) (*bls.PublicKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "pubkey cache lock timed out")
	}

	if pub, ok := c.keys[idx]; ok {
		c.sem.Release(1)
		return pub, nil
	}
	c.sem.Release(1)

	if c.loader == nil {
		return nil, ErrPubkeyNotFound
	}
	pub, err := c.loader(idx)
	if err != nil {
		return nil, err
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), c.timeout)
	defer cancel2()
	if err := c.sem.Acquire(ctx2, 1); err != nil {
		// The lookup still succeeded; a failed write-back just means the
		// next caller pays the loader cost again.
		log.WithError(err).Warn("pubkey cache lock timed out on write-back")
		return pub, nil
	}
	defer c.sem.Release(1)
	c.keys[idx] = pub
	return pub, nil
}
