package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/store"
)

// RetryStore is the slice of the store the retry policy needs.
type RetryStore interface {
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	IncrementRetry(ctx context.Context, id int64) error
	SetMessageAccount(ctx context.Context, id, accountID int64) error
	UpdateMessageStatus(ctx context.Context, id int64, status, errMsg string) error
	SelectBestAccount(ctx context.Context, excludeID int64) (*store.Account, error)
}

// Enqueuer re-admits a message into the dispatch queue.
type Enqueuer interface {
	Enqueue(msgID int64, priority int)
}

// RetryPolicy decides what happens after a failed send attempt: give up
// after maxRetries, otherwise demote the priority one notch, rebind to the
// least-loaded other account when one exists, and put the message back.
type RetryPolicy struct {
	store      RetryStore
	queue      Enqueuer
	maxRetries int
}

// NewRetryPolicy creates a policy. maxRetries <= 0 falls back to 3.
func NewRetryPolicy(st RetryStore, queue Enqueuer, maxRetries int) *RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryPolicy{store: st, queue: queue, maxRetries: maxRetries}
}

// Handle processes one failed attempt. It returns true when the message was
// requeued and false when it went terminal. A message that vanished from the
// store is logged and dropped.
func (p *RetryPolicy) Handle(ctx context.Context, msgID int64, reason string) (bool, error) {
	m, err := p.store.GetMessage(ctx, msgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("dropping unknown message from retry", "message_id", msgID)
			return false, nil
		}
		return false, err
	}

	if m.RetryCount >= p.maxRetries {
		if err := p.store.UpdateMessageStatus(ctx, m.ID, store.StatusFailed, "Maximum retry attempts exceeded"); err != nil {
			return false, fmt.Errorf("mark message %d failed: %w", m.ID, err)
		}
		logger.Warn("message exhausted retries",
			"message_id", m.ID, "retries", m.RetryCount, "reason", reason)
		return false, nil
	}

	if err := p.store.IncrementRetry(ctx, m.ID); err != nil {
		return false, fmt.Errorf("increment retry for message %d: %w", m.ID, err)
	}

	// Failover: prefer any other account with headroom over the one that
	// just failed. Keep the current binding when it is the only option.
	alt, err := p.store.SelectBestAccount(ctx, m.AccountID)
	if err != nil {
		return false, fmt.Errorf("select failover account for message %d: %w", m.ID, err)
	}
	if alt != nil && alt.ID != m.AccountID {
		if err := p.store.SetMessageAccount(ctx, m.ID, alt.ID); err != nil {
			return false, fmt.Errorf("rebind message %d: %w", m.ID, err)
		}
		logger.Info("message failed over to another account",
			"message_id", m.ID, "account_id", alt.ID)
	}

	if err := p.store.UpdateMessageStatus(ctx, m.ID, store.StatusQueued, reason); err != nil {
		return false, fmt.Errorf("requeue message %d: %w", m.ID, err)
	}

	next := m.Priority + 1
	if next > store.PriorityLowest {
		next = store.PriorityLowest
	}
	p.queue.Enqueue(m.ID, next)
	return true, nil
}
