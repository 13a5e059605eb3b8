package blocks

import "github.com/voyager-chain/beaconverify/consensus-types/primitives"

// ROBlock ("read-only block") pairs a signed block with its tree-hash root,
// computed once by the relevancy filter and threaded unchanged through every
// later stage. It is deliberately a
// value type: copying an ROBlock never implies re-hashing.
type ROBlock struct {
	signed *SignedBeaconBlock
	root   primitives.Root
}

// NewROBlock wraps a signed block together with its already-known root. Use
// this only when the root truly was computed by an earlier stage; otherwise
// use NewROBlockWithRoot, which computes it once.
func NewROBlock(signed *SignedBeaconBlock, root primitives.Root) (ROBlock, error) {
	if signed.IsNil() {
		return ROBlock{}, ErrNilBlock
	}
	return ROBlock{signed: signed, root: root}, nil
}

// NewROBlockWithRoot computes the block's root and wraps it.
func NewROBlockWithRoot(signed *SignedBeaconBlock) (ROBlock, error) {
	if signed.IsNil() {
		return ROBlock{}, ErrNilBlock
	}
	root, err := signed.Block.HashTreeRoot()
	if err != nil {
		return ROBlock{}, err
	}
	return ROBlock{signed: signed, root: root}, nil
}

// Root returns the memoised block root.
func (b ROBlock) Root() primitives.Root { return b.root }

// Block returns the underlying signed block.
func (b ROBlock) Block() *SignedBeaconBlock { return b.signed }

// Slot is a convenience accessor used throughout the pipeline for relevancy
// and ordering checks.
func (b ROBlock) Slot() primitives.Slot { return b.signed.Block.Slot }

// ParentRoot is a convenience accessor.
func (b ROBlock) ParentRoot() primitives.Root { return b.signed.Block.ParentRoot }

// ProposerIndex is a convenience accessor.
func (b ROBlock) ProposerIndex() primitives.ValidatorIndex { return b.signed.Block.ProposerIndex }
