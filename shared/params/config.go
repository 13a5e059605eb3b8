package params

import (
	"time"

	"github.com/prysmaticlabs/eth2-types"
)

// BeaconChainConfig holds the chain-spec constants that the verification
// pipeline needs. It mirrors only the subset of consensus-spec constants
// this module consumes, not the full beacon chain configuration.
type BeaconChainConfig struct {
	SlotsPerEpoch types.Slot // SlotsPerEpoch is the number of slots in one epoch.
	SecondsPerSlot uint64    // SecondsPerSlot is wall-clock seconds per slot.

	MaximumBlockSlotNumber types.Slot // MaximumBlockSlotNumber bounds how far in the future a block's slot may be. 2**32.

	SafeSlotsToImportOptimistically types.Slot // SafeSlotsToImportOptimistically bounds optimistic-import eligibility by distance from justification.

	ValidatorMonitorHistoricEpochs uint64 // ValidatorMonitorHistoricEpochs bounds how far back validator-monitor updates are applied.

	ZeroHash [32]byte // ZeroHash is the all-zero root used before any checkpoint exists.
}

// Lock/timeout constants. The two lock timeouts are referenced directly by
// package code.
const (
	// ValidatorPubkeyCacheLockTimeout bounds how long a reader waits on the pubkey cache.
	ValidatorPubkeyCacheLockTimeout = 1 * time.Second
	// BlockProcessingCacheLockTimeout bounds how long a caller waits on the snapshot cache.
	BlockProcessingCacheLockTimeout = 1 * time.Second
	// FutureSlotTolerance is a wall-clock tolerance for RPC/sync blocks. No code
	// in this module reads it: the relevancy filter grants RPC/sync blocks no
	// future-slot tolerance.
	FutureSlotTolerance = 2 * time.Second
)

var beaconConfig = mainnetConfig()

func mainnetConfig() *BeaconChainConfig {
	return &BeaconChainConfig{
		SlotsPerEpoch:                    32,
		SecondsPerSlot:                   12,
		MaximumBlockSlotNumber:           1 << 32,
		SafeSlotsToImportOptimistically:  128,
		ValidatorMonitorHistoricEpochs:   4,
		ZeroHash:                         [32]byte{},
	}
}

// BeaconConfig returns the global chain-spec configuration singleton.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// OverrideBeaconConfig swaps the global configuration singleton. Tests use this
// to shrink SlotsPerEpoch or timeouts without touching production defaults.
func OverrideBeaconConfig(cfg *BeaconChainConfig) {
	beaconConfig = cfg
}
