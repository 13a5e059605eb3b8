package blockchain

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voyager-chain/beaconverify/beacon-chain/blockchain/verification"
	"github.com/voyager-chain/beaconverify/consensus-types/blocks"
)

var (
	processedBlk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockchain_processed_block_total",
		Help: "The number of blocks that reached the verification pipeline.",
	})
	processedBlkFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockchain_processed_block_failed_total",
		Help: "The number of blocks rejected by the verification pipeline.",
	})
)

// ProcessBlock runs signed through the full verification pipeline
// and, on success, advances the tracked head. viaGossip selects whether
// the block gets gossip-disparity tolerance and proposer-signature caching.
func (s *Service) ProcessBlock(ctx context.Context, signed *blocks.SignedBeaconBlock, viaGossip bool) (*verification.ImportedBlock, *verification.BlockError) {
	processedBlk.Inc()
	imported, err := s.Pipeline.ProcessBlock(ctx, signed, viaGossip)
	if err != nil {
		processedBlkFailed.Inc()
		return nil, err
	}
	s.logImport(signed, imported)
	s.setHead(imported.Root)
	return imported, nil
}

// ProcessChainSegment runs a contiguous run of blocks through the batch
// verifier and advances the head to the last block admitted,
// if any were.
func (s *Service) ProcessChainSegment(ctx context.Context, segment []*blocks.SignedBeaconBlock) *verification.BatchProcessResult {
	result := s.Pipeline.ProcessChainSegment(ctx, segment)
	if result.ImportedBlocks > 0 {
		if head, err := s.cfg.ForkChoice.CachedHead(); err == nil {
			s.setHead(head)
		}
	}
	return result
}
