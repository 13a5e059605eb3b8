package verification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_snapshot_cache_hit",
		Help: "The number of parent loads served from the snapshot cache.",
	})
	snapshotCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_snapshot_cache_miss",
		Help: "The number of parent loads that fell through to the store.",
	})
	snapshotCacheClone = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_snapshot_cache_clone",
		Help: "The number of parent loads that required cloning a shared snapshot.",
	})
	parentLoadCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_parent_load_coalesced",
		Help: "The number of parent loads served by a store round trip another concurrent caller already had in flight.",
	})

	blockRootComputeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verification_block_root_compute_seconds",
		Help:    "Time spent computing a block's tree-hash root in the relevancy filter.",
		Buckets: prometheus.DefBuckets,
	})

	blocksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_blocks_rejected_total",
		Help: "The number of blocks rejected by the pipeline, labeled by error kind.",
	}, []string{"kind"})

	executionPayloadVerifySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verification_execution_payload_verify_seconds",
		Help:    "Time spent waiting on the execution payload verification task.",
		Buckets: prometheus.DefBuckets,
	})

	chainSegmentSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verification_chain_segment_size",
		Help:    "The number of blocks in each chain segment passed to the batch verifier.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})
)

func recordRejection(kind BlockErrorKind) {
	blocksRejected.WithLabelValues(kind.String()).Inc()
}
