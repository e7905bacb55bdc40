package engine

import (
	"hash/fnv"
	"sync"

	"github.com/roach88/metasync/internal/model"
)

// workItem is one imported object waiting on a shard.
type workItem struct {
	index int // position in the caller's slice; results are reported in this order
	obj   ImportedObject
}

// shardQueue is a thread-safe FIFO of work items for one shard.
//
// The queue is unbounded so the dispatcher never blocks on a slow shard.
// It uses a channel for signalling so workers can wait on it alongside
// context cancellation.
type shardQueue struct {
	mu     sync.Mutex
	items  []workItem
	closed bool
	signal chan struct{} // Signals item availability (buffered, size 1)
}

func newShardQueue() *shardQueue {
	return &shardQueue{
		items:  make([]workItem, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an item to the back of the queue.
// Returns false if the queue is closed.
func (q *shardQueue) Enqueue(it workItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, it)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *shardQueue) TryDequeue() (workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return workItem{}, false
	}
	it := q.items[0]

	// Drop the slot's pointers so the backing array does not retain objects.
	q.items[0] = workItem{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return it, true
}

// Wait returns a channel that fires when items may be available or the
// queue has been closed.
func (q *shardQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *shardQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drained reports whether the queue is closed and empty.
func (q *shardQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close signals that no more items will be enqueued.
func (q *shardQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal) // Wakes all waiters
}

// Abandon empties the queue and returns the items that were never started.
func (q *shardQueue) Abandon() []workItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	left := q.items
	q.items = nil
	return left
}

// shardFor maps a connected system object to a shard. Equal ids always map
// to the same shard.
func shardFor(cso *model.ConnectedSystemObject, shards int) int {
	h := fnv.New32a()
	h.Write(cso.ID[:])
	return int(h.Sum32() % uint32(shards))
}
