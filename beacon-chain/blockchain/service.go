// Package blockchain wires the verification pipeline and its collaborators
// into a long-lived service, and exposes the head/finality accessors other
// beacon-chain packages need.
package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	"github.com/voyager-chain/beaconverify/beacon-chain/sync/dispatcher"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

var log = logrus.WithField("prefix", "blockchain")

// Config bundles every external collaborator the verification pipeline
// consumes , plus the genesis parameters needed to answer
// chain-info queries before any block has been imported.
type Config struct {
	Clock           verification.SlotClock
	ForkChoice      verification.ForkChoice
	Store           verification.Store
	Engine          verification.ExecutionEngine
	Snapshots       verification.SnapshotCache
	Transition      transition.StateTransition
	ProposerCache   verification.BeaconProposerCache
	Observed        verification.ObservedBlockProducers
	Pubkeys         verification.PubkeyLookup
	ResolveProposer verification.ProposerResolver
	AttResolver     verification.AttestationResolver
	Spawner         verification.TaskSpawner
	Slasher         verification.Slasher
	// GossipDisparity bounds how far into the future a gossiped block's slot
	// may sit relative to the local clock before it's rejected as premature.
	// Zero means "use the network default" (params.BeaconNetworkConfig's
	// MaximumGossipClockDisparity).
	GossipDisparity time.Duration

	ProposerObserved dispatcher.ProposerObservationChecker
	GenesisRoot      primitives.Root
	GenesisTime      time.Time
	GenesisState     state.BeaconState
}

// Service owns the verification pipeline and its RPC-facing dispatcher, and
// tracks the current head for the chain-info accessors (chain_info.go).
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        *Config
	Pipeline   *verification.Pipeline
	Dispatcher *dispatcher.Dispatcher

	headLock  sync.RWMutex
	headRoot  primitives.Root
	headSlot  primitives.Slot
	headState state.BeaconState

	genesisRoot primitives.Root
	genesisTime time.Time
}

// NewService builds a Service around cfg's collaborators; it does not start
// any background processing until Start is called.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.ForkChoice == nil || cfg.Store == nil || cfg.Clock == nil {
		return nil, errors.New("blockchain: ForkChoice, Store, and Clock are required")
	}
	ctx, cancel := context.WithCancel(ctx)

	disparity := cfg.GossipDisparity
	if disparity == 0 {
		disparity = params.BeaconNetworkConfig().MaximumGossipClockDisparity
	}

	pipeline := &verification.Pipeline{
		Clock:            cfg.Clock,
		ForkChoice:       cfg.ForkChoice,
		Snapshots:        cfg.Snapshots,
		Store:            cfg.Store,
		Engine:           cfg.Engine,
		Transition:       cfg.Transition,
		ProposerCache:    cfg.ProposerCache,
		Observed:         cfg.Observed,
		Pubkeys:          cfg.Pubkeys,
		ResolveProposer:  cfg.ResolveProposer,
		AttResolver:      cfg.AttResolver,
		Spawner:          cfg.Spawner,
		Slasher:          cfg.Slasher,
		GossipDisparity:  disparity,
		GenesisTime:      uint64(cfg.GenesisTime.Unix()),
	}

	s := &Service{
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg,
		Pipeline:    pipeline,
		headRoot:    cfg.GenesisRoot,
		headState:   cfg.GenesisState,
		genesisRoot: cfg.GenesisRoot,
		genesisTime: cfg.GenesisTime,
	}
	s.Dispatcher = dispatcher.New(pipeline, cfg.ProposerObserved, cfg.GenesisTime, s.onDispatchResult)
	return s, nil
}

// Start brings the head up to date with fork choice's cached view. It does
// not launch a background loop: every inbound block is driven synchronously
// through ReceiveBlockGossip/ProcessBlock by the caller (there is no p2p/gossip
// transport in this repo to drive it instead).
func (s *Service) Start() error {
	log.Info("Starting block verification service")
	head, err := s.cfg.ForkChoice.CachedHead()
	if err != nil {
		return errors.Wrap(err, "could not read cached head from fork choice")
	}
	s.headLock.Lock()
	s.headRoot = head
	if node, ok := s.cfg.ForkChoice.GetBlock(head); ok {
		s.headSlot = node.Slot
	}
	s.headLock.Unlock()
	return nil
}

// Stop cancels the service's context; outstanding payload-verification tasks
// spawned through cfg.Spawner are responsible for observing ctx cancellation
// themselves.
func (s *Service) Stop() error {
	log.Info("Stopping block verification service")
	s.cancel()
	return nil
}

// onDispatchResult is the Dispatcher's ResultHandler: it advances the
// tracked head whenever a dispatched RPC block commits.
func (s *Service) onDispatchResult(root primitives.Root, imported *verification.ImportedBlock, err *verification.BlockError) {
	if err != nil {
		log.WithField("blockRoot", root).WithField("reason", err.Kind).Debug("RPC block did not import")
		return
	}
	if imported == nil {
		return
	}
	s.setHead(imported.Root)
}

func (s *Service) setHead(root primitives.Root) {
	s.headLock.Lock()
	defer s.headLock.Unlock()
	s.headRoot = root
	if node, ok := s.cfg.ForkChoice.GetBlock(root); ok {
		s.headSlot = node.Slot
	}
}
