package blockchain

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// BlockReceiver defines the methods used to hand a newly seen block to the
// verification service, regardless of which transport it arrived over.
type BlockReceiver interface {
	ReceiveBlockGossip(ctx context.Context, signed *blocks.SignedBeaconBlock) (*verification.ImportedBlock, *verification.BlockError)
	ReceiveBlockRPC(ctx context.Context, root primitives.Root, signed *blocks.SignedBeaconBlock, seenAt time.Time)
}

// ReceiveBlockGossip runs a gossip-delivered block straight through the
// pipeline: gossip blocks get disparity tolerance and proposer-signature
// caching instead of the RPC path's duplicate-cache gate, since pubsub
// validation already deduplicates by message ID upstream of this call.
func (s *Service) ReceiveBlockGossip(ctx context.Context, signed *blocks.SignedBeaconBlock) (*verification.ImportedBlock, *verification.BlockError) {
	receivedAt := time.Now()
	imported, err := s.ProcessBlock(ctx, signed, true)
	if err != nil {
		log.WithField("reason", err.Kind).Debug("Rejected gossip block")
		return nil, err
	}
	logBlockSyncStatus(signed.Block, imported.Root, s.FinalizedCheckpt(), receivedAt, s.GenesisTime())
	return imported, nil
}

// ReceiveBlockRPC hands an RPC-delivered (sync-path) block to the dispatcher,
// which applies the duplicate-cache gate and late-block requeue logic
// before running it through the pipeline.
func (s *Service) ReceiveBlockRPC(ctx context.Context, root primitives.Root, signed *blocks.SignedBeaconBlock, seenAt time.Time) {
	s.Dispatcher.ProcessRPCBlock(ctx, root, signed, seenAt)
}

// logImport records a one-line summary of a successfully imported block,
// warning if it did not become (or extend) the previous head.
func (s *Service) logImport(signed *blocks.SignedBeaconBlock, imported *verification.ImportedBlock) {
	logStateTransitionData(signed.Block)
	if signed.Block.ParentRoot != s.HeadRoot() {
		log.WithFields(logrus.Fields{
			"blockRoot":  imported.Root,
			"blockSlot":  signed.Block.Slot,
			"parentRoot": signed.Block.ParentRoot,
		}).Warn("Imported block builds on a competing fork")
	}
}
