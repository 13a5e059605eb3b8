package verification

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/beacon-chain/core/transition"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/bls"
)

// sigFixture gives every test a validator registry keyed by index, so
// includeProposal/addIndexedAttestation/etc. can resolve pubkeys without a
// real beacon state.
type sigFixture struct {
	keys map[primitives.ValidatorIndex]*bls.SecretKey
}

func newSigFixture(t *testing.T, n int) *sigFixture {
	f := &sigFixture{keys: make(map[primitives.ValidatorIndex]*bls.SecretKey, n)}
	for i := 0; i < n; i++ {
		sk, err := bls.RandKey()
		require.NoError(t, err)
		f.keys[primitives.ValidatorIndex(i)] = sk
	}
	return f
}

func (f *sigFixture) pubkeys(idx primitives.ValidatorIndex) (*bls.PublicKey, error) {
	sk, ok := f.keys[idx]
	if !ok {
		return nil, errNoSuchValidator(idx)
	}
	return sk.PublicKey(), nil
}

func errNoSuchValidator(idx primitives.ValidatorIndex) error {
	return &noSuchValidatorError{idx: idx}
}

type noSuchValidatorError struct{ idx primitives.ValidatorIndex }

func (e *noSuchValidatorError) Error() string { return "no such validator" }

func basicSignedBlock(proposer primitives.ValidatorIndex, slot primitives.Slot) *blocks.SignedBeaconBlock {
	return &blocks.SignedBeaconBlock{Block: &blocks.BeaconBlock{
		Slot:          slot,
		ProposerIndex: proposer,
		Body:          &blocks.BeaconBlockBody{},
	}}
}

func TestSignatureBatch_Verify_AcceptsValidEntries(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	b := NewSignatureBatch()
	msg := []byte("hello")
	require.NoError(t, b.Add(sk.PublicKey(), msg, sk.Sign(msg).Marshal()))
	require.Equal(t, 1, b.Len())
	require.True(t, b.Verify())
}

func TestSignatureBatch_Verify_RejectsTamperedEntry(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	b := NewSignatureBatch()
	require.NoError(t, b.Add(sk.PublicKey(), []byte("hello"), sk.Sign([]byte("goodbye")).Marshal()))
	require.False(t, b.Verify())
}

func TestIncludeProposal_QueuesProposerSignature(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	signed := basicSignedBlock(0, 5)
	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)
	signed.Signature = sk.Sign(ro.Root().Bytes()).Marshal()

	b := NewSignatureBatch()
	require.NoError(t, includeProposal(b, ro, f.pubkeys))
	require.Equal(t, 1, b.Len())
	require.True(t, b.Verify())
}

func TestIncludeAllSignaturesExceptProposal_QueuesRandaoAndSetsIndexedAttestations(t *testing.T) {
	f := newSigFixture(t, 2)
	proposerKey := f.keys[0]

	signed := basicSignedBlock(0, 7)
	signed.Block.Body.RandaoReveal = proposerKey.Sign(randaoSigningRoot(signed.Block)).Marshal()

	att := &blocks.Attestation{
		Data:      &blocks.AttestationData{Target: primitives.Checkpoint{Root: primitives.Root{9}}},
		Signature: f.keys[1].Sign(primitives.Root{9}.Bytes()).Marshal(),
	}
	signed.Block.Body.Attestations = []*blocks.Attestation{att}

	indexed := &blocks.IndexedAttestation{
		AttestingIndices: []primitives.ValidatorIndex{1},
		Data:             att.Data,
		Signature:        att.Signature,
	}
	resolver := func(a *blocks.Attestation) (*blocks.IndexedAttestation, error) {
		require.Same(t, att, a)
		return indexed, nil
	}

	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)

	b := NewSignatureBatch()
	cc := transition.NewConsensusContext(signed.Block.Slot)
	require.NoError(t, IncludeAllSignaturesExceptProposal(b, ro, cc, f.pubkeys, resolver))

	require.Equal(t, 2, b.Len())
	require.True(t, b.Verify())

	got := cc.IndexedAttestations()
	require.Len(t, got, 1)
	require.Same(t, indexed, got[0])
}

func TestIncludeAllSignatures_IncludesProposalAndRest(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	signed := basicSignedBlock(0, 3)
	signed.Block.Body.RandaoReveal = sk.Sign(randaoSigningRoot(signed.Block)).Marshal()

	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)
	signed.Signature = sk.Sign(ro.Root().Bytes()).Marshal()

	b := NewSignatureBatch()
	cc := transition.NewConsensusContext(signed.Block.Slot)
	resolver := func(*blocks.Attestation) (*blocks.IndexedAttestation, error) { return nil, nil }

	require.NoError(t, IncludeAllSignatures(b, ro, cc, f.pubkeys, resolver))
	require.Equal(t, 2, b.Len())
	require.True(t, b.Verify())
}

func TestAddIndexedAttestation_AggregatesMultipleSigners(t *testing.T) {
	f := newSigFixture(t, 2)

	data := &blocks.AttestationData{Target: primitives.Checkpoint{Root: primitives.Root{4}}}
	msg := attestationDataSigningRoot(data)
	sig := f.keys[0].Sign(msg).Aggregate(f.keys[1].Sign(msg))

	ia := &blocks.IndexedAttestation{
		AttestingIndices: []primitives.ValidatorIndex{0, 1},
		Data:             data,
		Signature:        sig.Marshal(),
	}

	b := NewSignatureBatch()
	require.NoError(t, addIndexedAttestation(b, ia, f.pubkeys))
	require.True(t, b.Verify())
}

func TestAddIndexedAttestation_EmptyIndices_SkipsWithoutError(t *testing.T) {
	f := newSigFixture(t, 0)
	b := NewSignatureBatch()
	require.NoError(t, addIndexedAttestation(b, &blocks.IndexedAttestation{}, f.pubkeys))
	require.Equal(t, 0, b.Len())
}

func TestAddHeaderSig_QueuesHeaderSignature(t *testing.T) {
	f := newSigFixture(t, 1)
	sk := f.keys[0]

	header := &blocks.BeaconBlockHeader{ProposerIndex: 0, BodyRoot: primitives.Root{7}}
	sh := &blocks.SignedBeaconBlockHeader{Header: header, Signature: sk.Sign(headerSigningRoot(header)).Marshal()}

	b := NewSignatureBatch()
	require.NoError(t, addHeaderSig(b, sh, f.pubkeys))
	require.True(t, b.Verify())
}

func TestIncludeAllSignaturesExceptProposal_QueuesVoluntaryExitAndBLSChange(t *testing.T) {
	f := newSigFixture(t, 2)

	signed := basicSignedBlock(0, 9)
	signed.Block.Body.RandaoReveal = f.keys[0].Sign(randaoSigningRoot(signed.Block)).Marshal()

	ve := &blocks.VoluntaryExit{ValidatorIndex: 1, Epoch: 3}
	ve.Signature = f.keys[1].Sign(voluntaryExitSigningRoot(ve)).Marshal()
	signed.Block.Body.VoluntaryExits = []*blocks.VoluntaryExit{ve}

	changeKey, err := bls.RandKey()
	require.NoError(t, err)
	bc := &blocks.BLSToExecutionChange{ValidatorIndex: 0, FromBLSPubkey: changeKey.PublicKey().Marshal()}
	bc.Signature = changeKey.Sign(blsChangeSigningRoot(bc)).Marshal()
	signed.Block.Body.BLSToExecutionChanges = []*blocks.BLSToExecutionChange{bc}

	ro, err := blocks.NewROBlockWithRoot(signed)
	require.NoError(t, err)

	b := NewSignatureBatch()
	cc := transition.NewConsensusContext(signed.Block.Slot)
	resolver := func(*blocks.Attestation) (*blocks.IndexedAttestation, error) { return nil, nil }
	require.NoError(t, IncludeAllSignaturesExceptProposal(b, ro, cc, f.pubkeys, resolver))

	require.Equal(t, 3, b.Len())
	require.True(t, b.Verify())
}
