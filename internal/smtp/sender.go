// Package smtp performs single delivery attempts: it loads a message, claims
// a rate slot on its account, builds the MIME payload, and hands it to the
// transport.
package smtp

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/store"
)

// Outcome classifies a send attempt.
type Outcome int

const (
	// OutcomeSent means the SMTP exchange completed.
	OutcomeSent Outcome = iota
	// OutcomeAlreadySent means the message was terminal before the attempt.
	OutcomeAlreadySent
	// OutcomeInactiveAccount means the bound account is disabled.
	OutcomeInactiveAccount
	// OutcomeRateLimited means the account budgets were exhausted.
	OutcomeRateLimited
	// OutcomeTransportError means the SMTP exchange failed.
	OutcomeTransportError
)

// Result is the classified outcome of one delivery attempt.
type Result struct {
	Outcome Outcome
	Info    string
}

// Failed reports whether the attempt needs retry handling.
func (r Result) Failed() bool {
	return r.Outcome != OutcomeSent && r.Outcome != OutcomeAlreadySent
}

// MessageStore is the slice of the store the sender needs.
type MessageStore interface {
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	GetAccount(ctx context.Context, id int64) (*store.Account, error)
	ClaimSendSlot(ctx context.Context, accountID int64) (bool, error)
	UpdateMessageStatus(ctx context.Context, id int64, status, errMsg string) error
}

// Transport delivers a raw message through one SMTP account.
type Transport interface {
	Deliver(ctx context.Context, account *store.Account, from string, rcpts []string, raw []byte) error
}

// Sender wraps one SMTP delivery attempt as a pure function of
// (message, account) state in the store.
type Sender struct {
	store     MessageStore
	transport Transport
	timeout   time.Duration
}

// NewSender creates a sender. timeout caps the SMTP exchange; zero means 30s.
func NewSender(st MessageStore, transport Transport, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sender{store: st, transport: transport, timeout: timeout}
}

// Send performs exactly one delivery attempt for the given message.
//
// The returned error covers store-level failures only (including
// store.ErrNotFound); everything about the attempt itself is in the Result.
// A slot claimed before a transport failure stays consumed: sending may have
// partially occurred, and over-counting is preferred over under-counting.
func (s *Sender) Send(ctx context.Context, msgID int64) (Result, error) {
	m, err := s.store.GetMessage(ctx, msgID)
	if err != nil {
		return Result{}, err
	}

	if m.Status == store.StatusSent {
		return Result{Outcome: OutcomeAlreadySent, Info: "already sent"}, nil
	}

	a, err := s.store.GetAccount(ctx, m.AccountID)
	if err != nil {
		return Result{}, err
	}

	// Soft read; the claim below re-verifies under the row lock.
	if !a.Active {
		return Result{Outcome: OutcomeInactiveAccount, Info: "inactive account"}, nil
	}

	ok, err := s.store.ClaimSendSlot(ctx, a.ID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Outcome: OutcomeRateLimited, Info: "rate limit"}, nil
	}

	if err := s.store.UpdateMessageStatus(ctx, m.ID, store.StatusSending, ""); err != nil {
		return Result{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := buildMIME(m, a)
	if err == nil {
		err = s.transport.Deliver(sendCtx, a, a.EmailAddress, m.EnvelopeRecipients(), raw)
	}
	if err != nil {
		errMsg := err.Error()
		if uerr := s.store.UpdateMessageStatus(ctx, m.ID, store.StatusFailed, errMsg); uerr != nil {
			logger.Error("failed to record send failure", "message_id", m.ID, "error", uerr.Error())
		}
		return Result{Outcome: OutcomeTransportError, Info: errMsg}, nil
	}

	if err := s.store.UpdateMessageStatus(ctx, m.ID, store.StatusSent, ""); err != nil {
		return Result{}, fmt.Errorf("mark message %d sent: %w", m.ID, err)
	}
	return Result{Outcome: OutcomeSent, Info: "sent"}, nil
}
