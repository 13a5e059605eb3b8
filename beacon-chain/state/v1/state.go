// Package v1 is a reference BeaconState implementation: a plain struct with
// a copy-on-write clone, enough for the verification pipeline to exercise
// against in production and in tests. The real consensus-spec state (full
// validator registry, balances, randao mixes, and so on) belongs to the
// state-transition external collaborator and is not
// reimplemented here.
package v1

import (
	"encoding/json"

	ssz "github.com/ferranbt/fastssz"
	"github.com/pkg/errors"
	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// BeaconState is the reference implementation of state.BeaconState.
type BeaconState struct {
	slot                       primitives.Slot
	finalizedCheckpoint        primitives.Checkpoint
	currentJustifiedCheckpoint primitives.Checkpoint
	committeeCacheEpoch        primitives.Epoch
	committeeCacheBuilt        bool
	// opaque stands in for the rest of the consensus-spec state (validator
	// registry, balances, randao mixes, ...): enough bytes to make two
	// distinct states hash to distinct roots without modelling the full
	// state container.
	opaque []byte
}

// New returns an empty BeaconState at slot 0.
func New() *BeaconState {
	return &BeaconState{opaque: []byte{}}
}

// Slot returns the state's current slot.
func (s *BeaconState) Slot() primitives.Slot { return s.slot }

// SetSlot sets the state's current slot. Callers only ever move it forward;
// the cheap state advance and per_slot_processing use this.
func (s *BeaconState) SetSlot(slot primitives.Slot) { s.slot = slot }

// CurrentEpoch derives the epoch containing Slot().
func (s *BeaconState) CurrentEpoch() primitives.Epoch {
	return epochAtSlot(s.slot)
}

// Copy returns an independent clone. Committee cache state is *not* copied:
// BuildCommitteeCache must be called again on the clone if needed, so a
// clone never carries forward a stale built flag.
func (s *BeaconState) Copy() state.BeaconState {
	cp := &BeaconState{
		slot:                       s.slot,
		finalizedCheckpoint:        s.finalizedCheckpoint,
		currentJustifiedCheckpoint: s.currentJustifiedCheckpoint,
	}
	cp.opaque = make([]byte, len(s.opaque))
	copy(cp.opaque, s.opaque)
	return cp
}

// FinalizedCheckpoint returns the state's finalized checkpoint.
func (s *BeaconState) FinalizedCheckpoint() primitives.Checkpoint { return s.finalizedCheckpoint }

// CurrentJustifiedCheckpoint returns the state's current justified checkpoint.
func (s *BeaconState) CurrentJustifiedCheckpoint() primitives.Checkpoint {
	return s.currentJustifiedCheckpoint
}

// SetFinalizedCheckpoint updates the state's finalized checkpoint.
func (s *BeaconState) SetFinalizedCheckpoint(c primitives.Checkpoint) { s.finalizedCheckpoint = c }

// SetCurrentJustifiedCheckpoint updates the state's current justified checkpoint.
func (s *BeaconState) SetCurrentJustifiedCheckpoint(c primitives.Checkpoint) {
	s.currentJustifiedCheckpoint = c
}

// BuildCommitteeCache marks the committee/proposer shuffling caches for epoch
// as populated. The reference implementation does not model committees; real
// deployments delegate to the state-transition collaborator's shuffling code.
func (s *BeaconState) BuildCommitteeCache(epoch primitives.Epoch) error {
	s.committeeCacheEpoch = epoch
	s.committeeCacheBuilt = true
	return nil
}

// CommitteeCacheEpoch reports which epoch's committee cache is currently built,
// and whether one is built at all.
func (s *BeaconState) CommitteeCacheEpoch() (primitives.Epoch, bool) {
	return s.committeeCacheEpoch, s.committeeCacheBuilt
}

// HashTreeRoot hashes the state's observable fields.
func (s *BeaconState) HashTreeRoot() (primitives.Root, error) {
	hh := ssz.NewHasher()
	idx := hh.Index()
	hh.PutUint64(uint64(s.slot))
	hh.PutBytes(s.finalizedCheckpoint.Root[:])
	hh.PutUint64(uint64(s.finalizedCheckpoint.Epoch))
	hh.PutBytes(s.currentJustifiedCheckpoint.Root[:])
	hh.PutUint64(uint64(s.currentJustifiedCheckpoint.Epoch))
	hh.PutBytes(s.opaque)
	hh.Merkleize(idx)
	root, err := hh.HashRoot()
	if err != nil {
		return primitives.Root{}, errors.Wrap(err, "could not hash state")
	}
	return primitives.Root(root), nil
}

// SetOpaque overwrites the placeholder state payload; tests use this to force
// two states to hash to different roots without modelling real state content.
func (s *BeaconState) SetOpaque(b []byte) { s.opaque = b }

// encodedState mirrors BeaconState's unexported fields for JSON
// (de)serialization, used by the bolt-backed store to persist hot states
// across harness runs without exposing the fields themselves.
type encodedState struct {
	Slot                       primitives.Slot
	FinalizedCheckpoint        primitives.Checkpoint
	CurrentJustifiedCheckpoint primitives.Checkpoint
	Opaque                     []byte
}

// MarshalJSON implements json.Marshaler.
func (s *BeaconState) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodedState{
		Slot:                       s.slot,
		FinalizedCheckpoint:        s.finalizedCheckpoint,
		CurrentJustifiedCheckpoint: s.currentJustifiedCheckpoint,
		Opaque:                     s.opaque,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The committee cache is left
// unbuilt, matching Copy's semantics: a restored state always needs
// BuildCommitteeCache called again before committee-dependent stages run.
func (s *BeaconState) UnmarshalJSON(data []byte) error {
	var enc encodedState
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	s.slot = enc.Slot
	s.finalizedCheckpoint = enc.FinalizedCheckpoint
	s.currentJustifiedCheckpoint = enc.CurrentJustifiedCheckpoint
	s.opaque = enc.Opaque
	return nil
}

func epochAtSlot(slot primitives.Slot) primitives.Epoch {
	spe := uint64(params.BeaconConfig().SlotsPerEpoch)
	return primitives.Epoch(uint64(slot) / spe)
}
