package dispatcher

import (
	"context"

	"github.com/voyager-chain/beaconverify/consensus-types/primitives"
)

// reprocessQueueCapacity bounds how many pending reprocess messages can be
// buffered before TrySend starts failing.
const reprocessQueueCapacity = 1024

// QueuedRpcBlock is a block set aside for later (re)processing: either
// another importer already holds its duplicate-cache slot, or it arrived
// early enough that importing it now would earn an undeserved proposer boost.
type QueuedRpcBlock struct {
	BlockRoot primitives.Root
	// ProcessFn performs the actual import when the queue drains this entry.
	ProcessFn func(ctx context.Context)
	// IgnoreFn runs instead of ProcessFn if the queue decides to drop this
	// entry without importing it (e.g. a full queue further down the line).
	IgnoreFn func()
}

// ReprocessMessage is the sum type carried on the reprocess queue: either a
// block waiting its turn, or a notice that some block finished importing
// (which may unblock ParentLookup chains waiting on it).
type ReprocessMessage interface {
	isReprocessMessage()
}

// RpcBlockMessage wraps a QueuedRpcBlock for the reprocess queue.
type RpcBlockMessage struct {
	Block QueuedRpcBlock
}

func (RpcBlockMessage) isReprocessMessage() {}

// BlockImportedMessage announces that block_root built on parent_root has
// been imported, for consumers that chain off import completion.
type BlockImportedMessage struct {
	BlockRoot  primitives.Root
	ParentRoot primitives.Root
}

func (BlockImportedMessage) isReprocessMessage() {}

// ReprocessQueue is the bounded channel blocks wait on between a duplicate
// hit or a late-block delay and their eventual (re)import.
type ReprocessQueue struct {
	ch chan ReprocessMessage
}

// NewReprocessQueue builds a reprocess queue with the default capacity.
func NewReprocessQueue() *ReprocessQueue {
	return &ReprocessQueue{ch: make(chan ReprocessMessage, reprocessQueueCapacity)}
}

// TrySend enqueues msg without blocking. A false return means the queue is
// full; callers log "Failed to inform block import" and move on rather than
// stalling the caller.
func (q *ReprocessQueue) TrySend(msg ReprocessMessage) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// Messages exposes the receive side for the queue's consumer loop.
func (q *ReprocessQueue) Messages() <-chan ReprocessMessage {
	return q.ch
}
