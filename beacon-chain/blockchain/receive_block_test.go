package blockchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

func TestService_ReceiveBlockGossip_RejectsUnknownParent(t *testing.T) {
	genesisRoot := primitives.Root{3}
	cfg := newTestConfig(genesisRoot)
	s, err := NewService(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	_, berr := s.ReceiveBlockGossip(context.Background(), unknownParentBlock(1))
	require.NotNil(t, berr)
	require.Equal(t, verification.ParentUnknown, berr.Kind)
	require.Equal(t, genesisRoot, s.HeadRoot())
}

func TestService_ReceiveBlockRPC_DelegatesToDispatcher(t *testing.T) {
	genesisRoot := primitives.Root{4}
	cfg := newTestConfig(genesisRoot)
	s, err := NewService(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	signed := unknownParentBlock(1)
	root := primitives.Root{0xbb}
	s.ReceiveBlockRPC(context.Background(), root, signed, time.Now())

	require.Equal(t, genesisRoot, s.HeadRoot())
}
