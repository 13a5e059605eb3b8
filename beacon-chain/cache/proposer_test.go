package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

func TestProposerCache_RoundTrip(t *testing.T) {
	c := NewProposerCache()
	decisionRoot := primitives.Root{9}

	_, ok := c.Get(decisionRoot, 100)
	require.False(t, ok)

	c.Put(decisionRoot, 100, 42)
	idx, ok := c.Get(decisionRoot, 100)
	require.True(t, ok)
	require.Equal(t, primitives.ValidatorIndex(42), idx)

	_, ok = c.Get(decisionRoot, 101)
	require.False(t, ok, "different slot is a distinct key")
}
