package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

func noAttestationsResolver(*blocks.Attestation) (*blocks.IndexedAttestation, error) { return nil, nil }

func TestFromGossipVerified_ValidSignatures_ProducesSignatureVerifiedBlock(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	signed := basicSignedBlock(0, 4)
	signed.Block.Body.RandaoReveal = sk.Sign(randaoSigningRoot(signed.Block)).Marshal()
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)

	cc := transition.NewConsensusContext(4)
	gv := &GossipVerifiedBlock{RO: ro, Ctx: cc}

	svb, serr := FromGossipVerified(context.Background(), gv, SignatureDeps{Pubkeys: f.pubkeys, Resolver: noAttestationsResolver})
	require.Nil(t, serr)
	require.Equal(t, ro.Root(), svb.RO.Root())
	require.Same(t, cc, svb.Ctx)
}

func TestFromGossipVerified_InvalidSignature_Rejects(t *testing.T) {
	f := newSigFixture(t, 1)

	signed := basicSignedBlock(0, 4)
	// A well-formed signature that verifies against the wrong message still
	// decodes, so batch.Verify() is what rejects it, not signature parsing.
	signed.Block.Body.RandaoReveal = f.keys[0].Sign([]byte("wrong message")).Marshal()
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)

	gv := &GossipVerifiedBlock{RO: ro, Ctx: transition.NewConsensusContext(4)}
	_, serr := FromGossipVerified(context.Background(), gv, SignatureDeps{Pubkeys: f.pubkeys, Resolver: noAttestationsResolver})
	require.NotNil(t, serr)
	require.Equal(t, InvalidSignature, serr.Kind)
}

func TestFromUnverified_ValidSignatures_SetsProposerIndexAndProducesBlock(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	signed := basicSignedBlock(0, 6)
	signed.Block.Body.RandaoReveal = sk.Sign(randaoSigningRoot(signed.Block)).Marshal()
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)
	signed.Signature = sk.Sign(ro.Root().Bytes()).Marshal()

	svb, serr := FromUnverified(context.Background(), ro, PreProcessingSnapshot{}, SignatureDeps{Pubkeys: f.pubkeys, Resolver: noAttestationsResolver})
	require.Nil(t, serr)
	idx, ok := svb.Ctx.ProposerIndex()
	require.True(t, ok)
	require.Equal(t, primitives.ValidatorIndex(0), idx)
}

func TestFromUnverified_InvalidProposalSignature_Rejects(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	signed := basicSignedBlock(0, 6)
	signed.Block.Body.RandaoReveal = sk.Sign(randaoSigningRoot(signed.Block)).Marshal()
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)
	signed.Signature = sk.Sign([]byte("some other root entirely")).Marshal()

	_, serr := FromUnverified(context.Background(), ro, PreProcessingSnapshot{}, SignatureDeps{Pubkeys: f.pubkeys, Resolver: noAttestationsResolver})
	require.NotNil(t, serr)
	require.Equal(t, InvalidSignature, serr.Kind)
}

func TestVerifyChainSegmentSignatures_EmptySegment_ReturnsNil(t *testing.T) {
	out, err := VerifyChainSegmentSignatures(context.Background(), nil, PreProcessingSnapshot{}, SignatureDeps{})
	require.Nil(t, out)
	require.Nil(t, err)
}

func TestVerifyChainSegmentSignatures_AllValid_CarriesParentOnlyOnFirst(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	mk := func(slot primitives.Slot) blocks.ROBlock {
		signed := basicSignedBlock(0, slot)
		signed.Block.Body.RandaoReveal = sk.Sign(randaoSigningRoot(signed.Block)).Marshal()
		ro, err := blocks.NewROBlockWithRoot(signed)
		require.NoError(t, err)
		signed.Signature = sk.Sign(ro.Root().Bytes()).Marshal()
		ro, err = blocks.NewROBlockWithRoot(signed)
		require.NoError(t, err)
		return ro
	}
	segment := []blocks.ROBlock{mk(1), mk(2)}
	parent := PreProcessingSnapshot{Owned: true}

	out, err := VerifyChainSegmentSignatures(context.Background(), segment, parent, SignatureDeps{Pubkeys: f.pubkeys, Resolver: noAttestationsResolver})
	require.Nil(t, err)
	require.Len(t, out, 2)
	require.Equal(t, parent, out[0].ParentSnapshot)
	require.Equal(t, PreProcessingSnapshot{}, out[1].ParentSnapshot)
}

func TestVerifyChainSegmentSignatures_OneInvalid_RejectsWholeSegment(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	good := basicSignedBlock(0, 1)
	good.Block.Body.RandaoReveal = sk.Sign(randaoSigningRoot(good.Block)).Marshal()
	goodRO, err := blocks.NewROBlockWithRoot(good)
	require.NoError(t, err)
	good.Signature = sk.Sign(goodRO.Root().Bytes()).Marshal()
	goodRO, err = blocks.NewROBlockWithRoot(good)
	require.NoError(t, err)

	bad := basicSignedBlock(0, 2)
	bad.Block.Body.RandaoReveal = []byte("garbage-but-wrong-length-signature")
	badRO, err := blocks.NewROBlockWithRoot(bad)
	require.NoError(t, err)

	segment := []blocks.ROBlock{goodRO, badRO}
	_, serr := VerifyChainSegmentSignatures(context.Background(), segment, PreProcessingSnapshot{}, SignatureDeps{Pubkeys: f.pubkeys, Resolver: noAttestationsResolver})
	require.NotNil(t, serr)
}
