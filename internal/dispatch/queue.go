// Package dispatch moves queued messages to the wire: an in-memory priority
// queue feeds a pool of workers, and a retry policy decides what happens to
// failed attempts.
package dispatch

import (
	"container/heap"
	"sync"
	"time"
)

type item struct {
	priority int
	seq      uint64
	msgID    int64
}

// itemHeap orders by priority first (1 is most urgent), then by enqueue
// order so equal-priority messages stay FIFO.
type itemHeap []item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(item)) }

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is a concurrency-safe priority queue of message IDs.
type Queue struct {
	mu    sync.Mutex
	items itemHeap
	seq   uint64
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue adds a message at the given priority. Duplicate IDs are allowed;
// the sender's already-sent check makes a double dequeue harmless.
func (q *Queue) Enqueue(msgID int64, priority int) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, item{priority: priority, seq: q.seq, msgID: msgID})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue pops the most urgent message, blocking up to timeout when the
// queue is empty. The second return is false on timeout.
func (q *Queue) Dequeue(timeout time.Duration) (int64, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := heap.Pop(&q.items).(item)
			q.mu.Unlock()
			return it.msgID, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-timer.C:
			return 0, false
		}
	}
}

// Len reports how many messages are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
