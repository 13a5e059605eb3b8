package transition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

func TestConsensusContext_Slot(t *testing.T) {
	cc := NewConsensusContext(9)
	require.Equal(t, primitives.Slot(9), cc.Slot())
}

func TestConsensusContext_BlockRoot_SetOnce(t *testing.T) {
	cc := NewConsensusContext(1)
	_, ok := cc.BlockRoot()
	require.False(t, ok)

	cc.SetBlockRoot(primitives.Root{1})
	cc.SetBlockRoot(primitives.Root{2})

	root, ok := cc.BlockRoot()
	require.True(t, ok)
	require.Equal(t, primitives.Root{1}, root)
}

func TestConsensusContext_ProposerIndex_SetOnce(t *testing.T) {
	cc := NewConsensusContext(1)
	_, ok := cc.ProposerIndex()
	require.False(t, ok)

	cc.SetProposerIndex(5)
	cc.SetProposerIndex(6)

	idx, ok := cc.ProposerIndex()
	require.True(t, ok)
	require.Equal(t, primitives.ValidatorIndex(5), idx)
}

func TestConsensusContext_IndexedAttestations(t *testing.T) {
	cc := NewConsensusContext(1)
	require.Nil(t, cc.IndexedAttestations())

	atts := []*blocks.IndexedAttestation{{Data: &blocks.AttestationData{Slot: 1}}}
	cc.SetIndexedAttestations(atts)
	require.Equal(t, atts, cc.IndexedAttestations())
}
