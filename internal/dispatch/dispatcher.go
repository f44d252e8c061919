package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/smtp"
	"github.com/ignite/mailrelay/internal/store"
)

const (
	dequeueTimeout  = time.Second
	stopJoinTimeout = 5 * time.Second
)

// Deliverer performs one send attempt for a message.
type Deliverer interface {
	Send(ctx context.Context, msgID int64) (smtp.Result, error)
}

// Dispatcher runs a pool of workers that drain the queue through the sender
// and route failed attempts into the retry policy.
type Dispatcher struct {
	queue      *Queue
	sender     Deliverer
	retry      *RetryPolicy
	numWorkers int
	poolID     string

	// Stats
	totalSent     int64
	totalFailed   int64
	totalRequeued int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewDispatcher creates a dispatcher. numWorkers <= 0 falls back to 2.
func NewDispatcher(queue *Queue, sender Deliverer, retry *RetryPolicy, numWorkers int) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = 2
	}
	return &Dispatcher{
		queue:      queue,
		sender:     sender,
		retry:      retry,
		numWorkers: numWorkers,
		poolID:     fmt.Sprintf("pool-%s", uuid.New().String()[:8]),
	}
}

// Queue exposes the dispatch queue so producers can enqueue directly.
func (d *Dispatcher) Queue() *Queue { return d.queue }

// Start launches the workers. Calling Start on a running dispatcher is a
// no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.mu.Unlock()

	logger.Info("dispatcher starting", "pool_id", d.poolID, "workers", d.numWorkers)

	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop signals the workers and waits up to stopJoinTimeout for them to
// drain their current attempt. In-flight sends are never cancelled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	joined := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(stopJoinTimeout):
		logger.Warn("workers still busy at join timeout", "pool_id", d.poolID)
	}

	logger.Info("dispatcher stopped",
		"pool_id", d.poolID,
		"total_sent", atomic.LoadInt64(&d.totalSent),
		"total_failed", atomic.LoadInt64(&d.totalFailed),
		"total_requeued", atomic.LoadInt64(&d.totalRequeued))
}

// Running reports whether the pool is active.
func (d *Dispatcher) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() map[string]int64 {
	return map[string]int64{
		"queue_depth":    int64(d.queue.Len()),
		"workers":        int64(d.numWorkers),
		"total_sent":     atomic.LoadInt64(&d.totalSent),
		"total_failed":   atomic.LoadInt64(&d.totalFailed),
		"total_requeued": atomic.LoadInt64(&d.totalRequeued),
	}
}

func (d *Dispatcher) worker(num int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		msgID, ok := d.queue.Dequeue(dequeueTimeout)
		if !ok {
			continue
		}

		// Shutdown is observed between dequeue attempts only: a claimed
		// slot must be followed through to a terminal status, so the
		// attempt itself runs on an uncancellable context. The sender
		// bounds its own SMTP exchange.
		attemptCtx := context.Background()

		res, err := d.sender.Send(attemptCtx, msgID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("dropping message missing from store",
					"worker", num, "message_id", msgID)
				continue
			}
			logger.Error("send attempt errored",
				"worker", num, "message_id", msgID, "error", err.Error())
			time.Sleep(time.Second)
			continue
		}

		if !res.Failed() {
			if res.Outcome == smtp.OutcomeSent {
				atomic.AddInt64(&d.totalSent, 1)
			}
			continue
		}

		requeued, err := d.retry.Handle(attemptCtx, msgID, res.Info)
		if err != nil {
			logger.Error("retry handling errored",
				"worker", num, "message_id", msgID, "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		if requeued {
			atomic.AddInt64(&d.totalRequeued, 1)
		} else {
			atomic.AddInt64(&d.totalFailed, 1)
		}
	}
}
