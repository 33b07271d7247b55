// Package queue provides the blocking priority queue between a node's
// inbound listener and its forwarding workers.
//
// Ordering: HIGH before MEDIUM before LOW, FIFO within a level. Ties are
// broken by a sequence number assigned at enqueue time, so two entries of
// equal priority always leave in arrival order.
package queue

import (
	"container/heap"
	"sync"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

type entry struct {
	msg wire.Message
	seq uint64
}

// entryHeap orders by (priority value ascending, sequence ascending).
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	pi, pj := h[i].msg.Priority.Value(), h[j].msg.Priority.Value()
	if pi != pj {
		return pi < pj
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}

// Queue is a concurrent-safe priority queue of wire messages. Multiple
// workers may dequeue from it; each entry is delivered to exactly one caller.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries entryHeap
	nextSeq uint64
	closed  bool
}

// New creates an empty Queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue inserts msg at its priority position. It never blocks. Messages
// enqueued after Close are dropped; the node is shutting down.
func (q *Queue) Enqueue(msg wire.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.nextSeq++
	heap.Push(&q.entries, entry{msg: msg, seq: q.nextSeq})
	q.cond.Signal()
}

// Dequeue blocks until an entry is available and returns the most urgent one
// (oldest of equal priority). It returns ok=false once the queue has been
// closed; remaining entries at close are dropped, not drained.
func (q *Queue) Dequeue() (wire.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.entries) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return wire.Message{}, false
	}
	e := heap.Pop(&q.entries).(entry)
	return e.msg, true
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close wakes all blocked Dequeue calls and makes the queue refuse further
// work. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.entries = nil
	q.cond.Broadcast()
}
