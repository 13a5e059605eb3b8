package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

func TestBlockFiles_SortsAndFiltersJSON(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002.json", "0001.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600))
	}

	paths, err := blockFiles(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, filepath.Join(dir, "0001.json"), paths[0])
	require.Equal(t, filepath.Join(dir, "0002.json"), paths[1])
}

func TestLoadBlock_DecodesSignedBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block.json")
	signed := &blocks.SignedBeaconBlock{
		Block:     &blocks.BeaconBlock{Slot: 3, Body: &blocks.BeaconBlockBody{}},
		Signature: []byte{1, 2, 3},
	}
	raw, err := json.Marshal(signed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))

	got, err := loadBlock(path)
	require.NoError(t, err)
	require.Equal(t, primitives.Slot(3), got.Block.Slot)
	require.Equal(t, []byte{1, 2, 3}, got.Signature)
}

func TestResolveProposer_AlwaysValidatorZero(t *testing.T) {
	idx, err := resolveProposer(nil, 17)
	require.NoError(t, err)
	require.Equal(t, primitives.ValidatorIndex(0), idx)
}

func TestResolveAttestation_CarriesDataAndSignature(t *testing.T) {
	att := &blocks.Attestation{
		Data:      &blocks.AttestationData{Slot: 9},
		Signature: []byte{4, 5},
	}
	indexed, err := resolveAttestation(att)
	require.NoError(t, err)
	require.Equal(t, att.Data, indexed.Data)
	require.Equal(t, att.Signature, indexed.Signature)
	require.Empty(t, indexed.AttestingIndices)
}
