package blockchain

import (
	"context"
	"time"

	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// HeadFetcher defines a common interface for methods that retrieve
// head-related data from the verification service.
type HeadFetcher interface {
	HeadSlot() primitives.Slot
	HeadRoot() primitives.Root
	HeadState(ctx context.Context) (state.BeaconState, error)
}

// FinalizationFetcher defines a common interface for methods that retrieve
// finalization and justification data from the verification service.
type FinalizationFetcher interface {
	FinalizedCheckpt() primitives.Checkpoint
}

// TimeFetcher retrieves genesis-relative time data.
type TimeFetcher interface {
	GenesisTime() time.Time
	CurrentSlot() primitives.Slot
}

// OptimisticFetcher reports whether a block was imported without full
// execution-layer validation , "optimistic import").
type OptimisticFetcher interface {
	IsOptimistic(root primitives.Root) (bool, error)
}

// HeadSlot returns the slot of the currently tracked head.
func (s *Service) HeadSlot() primitives.Slot {
	s.headLock.RLock()
	defer s.headLock.RUnlock()
	return s.headSlot
}

// HeadRoot returns the root of the currently tracked head.
func (s *Service) HeadRoot() primitives.Root {
	s.headLock.RLock()
	defer s.headLock.RUnlock()
	return s.headRoot
}

// HeadState returns a copy of the currently tracked head state, if one has
// been recorded; otherwise it is loaded from the store.
func (s *Service) HeadState(ctx context.Context) (state.BeaconState, error) {
	s.headLock.RLock()
	head := s.headRoot
	headSlot := s.headSlot
	cached := s.headState
	s.headLock.RUnlock()

	if cached != nil {
		return cached.Copy(), nil
	}
	return s.cfg.Store.GetAdvancedHotState(ctx, head, headSlot, head)
}

// FinalizedCheckpt returns the latest finalized checkpoint known to fork
// choice.
func (s *Service) FinalizedCheckpt() primitives.Checkpoint {
	return s.cfg.ForkChoice.FinalizedCheckpoint()
}

// GenesisTime returns the genesis time of the beacon chain.
func (s *Service) GenesisTime() time.Time {
	return s.genesisTime
}

// GenesisRoot returns the genesis block root.
func (s *Service) GenesisRoot() primitives.Root {
	return s.genesisRoot
}

// CurrentSlot returns the wall-clock slot as reported by the configured
// slot clock.
func (s *Service) CurrentSlot() primitives.Slot {
	return s.cfg.Clock.Now()
}

// IsOptimistic reports whether root's fork-choice node carries an execution
// payload that has not yet been fully validated. A root unknown to fork
// choice is reported as non-optimistic, matching the treatment of blocks
// that never entered the DAG.
func (s *Service) IsOptimistic(root primitives.Root) (bool, error) {
	node, ok := s.cfg.ForkChoice.GetBlock(root)
	if !ok {
		return false, nil
	}
	return node.Optimistic, nil
}
