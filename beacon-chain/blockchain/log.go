package blockchain

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
	"github.com/voyager-chain/beaconverify/shared/params"
)

// logStateTransitionData logs a one-line summary of the operations a newly
// imported block carried, at debug level since it fires on every import.
func logStateTransitionData(b *blocks.BeaconBlock) {
	entry := log.WithField("slot", b.Slot)
	if n := len(b.Body.Attestations); n > 0 {
		entry = entry.WithField("attestations", n)
	}
	if n := len(b.Body.Deposits); n > 0 {
		entry = entry.WithField("deposits", n)
	}
	if n := len(b.Body.AttesterSlashings); n > 0 {
		entry = entry.WithField("attesterSlashings", n)
	}
	if n := len(b.Body.ProposerSlashings); n > 0 {
		entry = entry.WithField("proposerSlashings", n)
	}
	if n := len(b.Body.VoluntaryExits); n > 0 {
		entry = entry.WithField("voluntaryExits", n)
	}
	entry.Debug("Applied block to fork choice")
}

// logBlockSyncStatus logs a block's sync progress relative to wall-clock
// time and the current finalized checkpoint.
func logBlockSyncStatus(b *blocks.BeaconBlock, blockRoot primitives.Root, finalized primitives.Checkpoint, receivedTime, genesisTime time.Time) {
	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	startTime := genesisTime.Add(time.Duration(b.Slot) * time.Duration(params.BeaconConfig().SecondsPerSlot) * time.Second)
	log.WithFields(logrus.Fields{
		"slot":           b.Slot,
		"slotInEpoch":    b.Slot % slotsPerEpoch,
		"block":          blockRoot,
		"epoch":          b.Slot / slotsPerEpoch,
		"finalizedEpoch": finalized.Epoch,
		"finalizedRoot":  finalized.Root,
	}).Info("Synced new block")
	log.WithFields(logrus.Fields{
		"slot":               b.Slot,
		"sinceSlotStartTime": time.Since(startTime),
		"processedTime":      time.Since(receivedTime),
	}).Debug("Timings for synced block")
}
