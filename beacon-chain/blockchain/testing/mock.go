// Package testing provides in-memory test doubles for the verification
// pipeline's external collaborators: fork choice, the store, the
// execution engine, and the slot clock. Each double is a plain struct with
// exported, directly-poppable fields rather than a generated mock, matching
// the chain package's own testing/mock.go idiom.
package testing

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/beacon-chain/state"
	statev1 "github.com/voyager-chain/beaconverify/beacon-chain/state/v1"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// ForkChoice is an in-memory verification.ForkChoice double, seeded with a
// genesis block at construction so relevancy checks against it always have a
// finalized root to compare against.
type ForkChoice struct {
	mu                sync.Mutex
	nodes             map[primitives.Root]*verification.ForkChoiceNode
	finalized         primitives.Checkpoint
	notFinalizedDescendant map[primitives.Root]bool
	Attestations      []*blocks.IndexedAttestation
	AttesterSlashings []*blocks.AttesterSlashing
	Inserted          []verification.ROBlockWithState
	Head              primitives.Root
	// InsertErr, when set, makes InsertBlock fail instead of recording the
	// block, for exercising commit-stage failure handling.
	InsertErr error
}

// NewForkChoice seeds a fork choice with a single genesis node at slot 0,
// also marked as the finalized checkpoint.
func NewForkChoice(genesisRoot primitives.Root) *ForkChoice {
	fc := &ForkChoice{
		nodes:                  make(map[primitives.Root]*verification.ForkChoiceNode),
		notFinalizedDescendant: make(map[primitives.Root]bool),
		finalized:              primitives.Checkpoint{Root: genesisRoot, Epoch: 0},
		Head:                   genesisRoot,
	}
	fc.nodes[genesisRoot] = &verification.ForkChoiceNode{Root: genesisRoot, Slot: 0}
	return fc
}

// ContainsBlock satisfies verification.ForkChoice.
func (f *ForkChoice) ContainsBlock(root primitives.Root) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[root]
	return ok
}

// GetBlock satisfies verification.ForkChoice.
func (f *ForkChoice) GetBlock(root primitives.Root) (*verification.ForkChoiceNode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[root]
	return n, ok
}

// IsFinalizedCheckpointOrDescendant satisfies verification.ForkChoice. By
// default every known block is treated as a finalized descendant; tests that
// need to exercise NotFinalizedDescendant call MarkNotFinalizedDescendant.
func (f *ForkChoice) IsFinalizedCheckpointOrDescendant(root primitives.Root) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.notFinalizedDescendant[root]
}

// MarkNotFinalizedDescendant forces root to fail the finalized-descendant
// check, for exercising the NotFinalizedDescendant rejection path.
func (f *ForkChoice) MarkNotFinalizedDescendant(root primitives.Root) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notFinalizedDescendant[root] = true
}

// MarkExecutionPayloadInvalid flags an already-known node's payload as
// invalid, for exercising the ParentExecutionPayloadInvalid rejection path.
func (f *ForkChoice) MarkExecutionPayloadInvalid(root primitives.Root) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[root]; ok {
		n.ExecutionPayloadInvalid = true
	}
}

// OnAttestation satisfies verification.ForkChoice.
func (f *ForkChoice) OnAttestation(ctx context.Context, indexed *blocks.IndexedAttestation, fromBlock bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Attestations = append(f.Attestations, indexed)
	return nil
}

// OnAttesterSlashing satisfies verification.ForkChoice.
func (f *ForkChoice) OnAttesterSlashing(ctx context.Context, slashing *blocks.AttesterSlashing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AttesterSlashings = append(f.AttesterSlashings, slashing)
	return nil
}

// CachedHead satisfies verification.ForkChoice.
func (f *ForkChoice) CachedHead() (primitives.Root, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Head, nil
}

// InsertBlock satisfies verification.ForkChoice.
func (f *ForkChoice) InsertBlock(ctx context.Context, block verification.ROBlockWithState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	root := block.Block.Root()
	f.nodes[root] = &verification.ForkChoiceNode{
		Root:                    root,
		Slot:                    block.Block.Slot(),
		ExecutionPayloadInvalid: false,
		Optimistic:              block.Optimistic,
	}
	f.Inserted = append(f.Inserted, block)
	f.Head = root
	return nil
}

// FinalizedCheckpoint satisfies verification.ForkChoice.
func (f *ForkChoice) FinalizedCheckpoint() primitives.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized
}

// SetFinalizedCheckpoint lets tests move finality forward.
func (f *ForkChoice) SetFinalizedCheckpoint(c primitives.Checkpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = c
}

// Store is an in-memory verification.Store double.
type Store struct {
	mu         sync.Mutex
	blocks     map[primitives.Root]*blocks.SignedBeaconBlock
	states     map[primitives.Root]state.BeaconState
	summaries  map[primitives.Root]*verification.HotStateSummary
	AnchorSlot primitives.Slot
}

// NewStore builds an empty in-memory store.
func NewStore() *Store {
	return &Store{
		blocks:    make(map[primitives.Root]*blocks.SignedBeaconBlock),
		states:    make(map[primitives.Root]state.BeaconState),
		summaries: make(map[primitives.Root]*verification.HotStateSummary),
	}
}

// SaveBlock records signed under root, for later retrieval by GetBlindedBlock.
func (s *Store) SaveBlock(root primitives.Root, signed *blocks.SignedBeaconBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[root] = signed
}

// SaveState records st as the canonical state at root.
func (s *Store) SaveState(root primitives.Root, st state.BeaconState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[root] = st
}

// GetBlindedBlock satisfies verification.Store.
func (s *Store) GetBlindedBlock(ctx context.Context, root primitives.Root) (*blocks.SignedBeaconBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[root]
	if !ok {
		return nil, errors.Errorf("block %x not found", root)
	}
	return b, nil
}

// GetAdvancedHotState satisfies verification.Store. It ignores upToSlot and
// simply returns a copy of whatever state is recorded for root (falling back
// to fallbackStateRoot), since the in-memory double never needs to replay
// slots itself.
func (s *Store) GetAdvancedHotState(ctx context.Context, root primitives.Root, upToSlot primitives.Slot, fallbackStateRoot primitives.Root) (state.BeaconState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[root]; ok {
		return st.Copy(), nil
	}
	if st, ok := s.states[fallbackStateRoot]; ok {
		return st.Copy(), nil
	}
	return nil, errors.Errorf("no state recorded for root %x or fallback %x", root, fallbackStateRoot)
}

// LoadHotStateSummary satisfies verification.Store.
func (s *Store) LoadHotStateSummary(ctx context.Context, root primitives.Root) (*verification.HotStateSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[root]
	if !ok {
		return nil, errors.Errorf("no summary for root %x", root)
	}
	return sum, nil
}

// BlockExists satisfies verification.Store.
func (s *Store) BlockExists(ctx context.Context, root primitives.Root) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[root]
	return ok, nil
}

// GetAnchorSlot satisfies verification.Store.
func (s *Store) GetAnchorSlot(ctx context.Context) (primitives.Slot, error) {
	return s.AnchorSlot, nil
}

// DoAtomically satisfies verification.Store.
func (s *Store) DoAtomically(ctx context.Context, batch *verification.StoreBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range batch.StateWrites {
		s.states[w.Root] = w.State
	}
	for _, w := range batch.SummaryWrites {
		s.summaries[w.Root] = &verification.HotStateSummary{Root: w.Root, Slot: w.Slot}
	}
	return nil
}

// SlotClock is a fixed-"now" verification.SlotClock double.
type SlotClock struct {
	Genesis time.Time
	Current primitives.Slot
}

// NewSlotClock builds a clock pinned at slot current.
func NewSlotClock(current primitives.Slot) *SlotClock {
	return &SlotClock{Current: current}
}

// Now satisfies verification.SlotClock.
func (c *SlotClock) Now() primitives.Slot { return c.Current }

// NowWithFutureTolerance satisfies verification.SlotClock.
func (c *SlotClock) NowWithFutureTolerance(d time.Duration) primitives.Slot {
	spslot := time.Duration(params.BeaconConfig().SecondsPerSlot) * time.Second
	return c.Current + primitives.Slot(d/spslot)
}

// StartOf satisfies verification.SlotClock.
func (c *SlotClock) StartOf(slot primitives.Slot) time.Duration {
	return time.Duration(slot) * time.Duration(params.BeaconConfig().SecondsPerSlot) * time.Second
}

// UnaggregatedAttestationProductionDelay satisfies verification.SlotClock.
func (c *SlotClock) UnaggregatedAttestationProductionDelay() time.Duration {
	return 4 * time.Second
}

// ExecutionEngine is a configurable verification.ExecutionEngine double.
type ExecutionEngine struct {
	Status            verification.PayloadStatus
	MergeStatus       verification.PayloadStatus
	OptimisticAllowed bool
	Err               error
}

// NewExecutionEngine returns an engine that accepts every payload.
func NewExecutionEngine() *ExecutionEngine {
	return &ExecutionEngine{Status: verification.PayloadValid, MergeStatus: verification.PayloadValid}
}

// NotifyNewPayload satisfies verification.ExecutionEngine.
func (e *ExecutionEngine) NotifyNewPayload(ctx context.Context, signed *blocks.SignedBeaconBlock) (verification.PayloadStatus, error) {
	return e.Status, e.Err
}

// ValidateMergeBlock satisfies verification.ExecutionEngine.
func (e *ExecutionEngine) ValidateMergeBlock(ctx context.Context, signed *blocks.SignedBeaconBlock) (verification.PayloadStatus, error) {
	return e.MergeStatus, e.Err
}

// IsOptimisticCandidateBlock satisfies verification.ExecutionEngine.
func (e *ExecutionEngine) IsOptimisticCandidateBlock(ctx context.Context, slot primitives.Slot, parentRoot primitives.Root) (bool, error) {
	return e.OptimisticAllowed, nil
}

// NewBeaconState builds a v1.BeaconState at the given slot, for tests that
// need a concrete state.BeaconState rather than an interface literal.
func NewBeaconState(slot primitives.Slot) state.BeaconState {
	st := statev1.New()
	st.SetSlot(slot)
	return st
}
