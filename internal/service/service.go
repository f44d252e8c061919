// Package service is the application facade: it validates input, persists
// messages and accounts, and feeds the dispatch queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/store"
)

// ErrNoAccountAvailable means every account is inactive or out of budget.
var ErrNoAccountAvailable = errors.New("no available SMTP account")

// Store is the slice of the store the service needs.
type Store interface {
	CreateMessage(ctx context.Context, m *store.Message) (int64, error)
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	ListMessagesByStatus(ctx context.Context, status string, limit int) ([]*store.Message, error)
	CreateAccount(ctx context.Context, a *store.Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (*store.Account, error)
	ListAccounts(ctx context.Context) ([]*store.Account, error)
	UpdateAccount(ctx context.Context, id int64, p store.AccountPatch) error
	SelectBestAccount(ctx context.Context, excludeID int64) (*store.Account, error)
}

// Enqueuer admits a persisted message into the dispatch queue.
type Enqueuer interface {
	Enqueue(msgID int64, priority int)
}

// Service wires validation, storage, and the queue behind one surface.
type Service struct {
	store Store
	queue Enqueuer
}

// New creates a service.
func New(st Store, queue Enqueuer) *Service {
	return &Service{store: st, queue: queue}
}

// CreateEmailRequest is the submit payload.
type CreateEmailRequest struct {
	Subject     string   `json:"subject"`
	Recipients  []string `json:"recipients"`
	HTMLContent string   `json:"html_content"`
	AccountID   *int64   `json:"smtp_config_id"`
	Cc          []string `json:"cc"`
	Bcc         []string `json:"bcc"`
	Priority    *int     `json:"priority"`
}

// EmailView is the detailed message view joined with its account.
type EmailView struct {
	ID           int64    `json:"id"`
	Subject      string   `json:"subject"`
	Sender       string   `json:"sender"`
	SenderName   string   `json:"sender_name"`
	Recipients   []string `json:"recipients"`
	Cc           []string `json:"cc"`
	Bcc          []string `json:"bcc"`
	Status       string   `json:"status"`
	Priority     int      `json:"priority"`
	RetryCount   int      `json:"retry_count"`
	Account      string   `json:"smtp_config"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	SentAt       *string  `json:"sent_at"`
	ErrorMessage string   `json:"error_message"`
}

// EmailSummary is one row of a status listing.
type EmailSummary struct {
	ID         int64  `json:"id"`
	Subject    string `json:"subject"`
	Status     string `json:"status"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retry_count"`
	CreatedAt  string `json:"created_at"`
}

// CreateEmail validates and persists a message, binds it to an account, and
// enqueues it. An unbound request picks the least-utilized active account
// with budget left; ErrNoAccountAvailable when there is none.
func (s *Service) CreateEmail(ctx context.Context, req *CreateEmailRequest) (int64, error) {
	if err := validateCreateEmail(req); err != nil {
		return 0, err
	}

	var accountID int64
	if req.AccountID != nil {
		a, err := s.store.GetAccount(ctx, *req.AccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, validationErrorf("Unknown smtp_config_id: %d", *req.AccountID)
			}
			return 0, err
		}
		accountID = a.ID
	} else {
		a, err := s.store.SelectBestAccount(ctx, 0)
		if err != nil {
			return 0, err
		}
		if a == nil {
			return 0, ErrNoAccountAvailable
		}
		accountID = a.ID
	}

	priority := store.PriorityHighest
	if req.Priority != nil {
		priority = *req.Priority
	}

	id, err := s.store.CreateMessage(ctx, &store.Message{
		Subject:    req.Subject,
		HTMLBody:   req.HTMLContent,
		Recipients: req.Recipients,
		Cc:         req.Cc,
		Bcc:        req.Bcc,
		AccountID:  accountID,
		Priority:   priority,
		Status:     store.StatusQueued,
	})
	if err != nil {
		return 0, fmt.Errorf("persist message: %w", err)
	}

	s.queue.Enqueue(id, priority)
	logger.Info("email queued", "email_id", id, "account_id", accountID, "priority", priority)
	return id, nil
}

// GetEmail returns the joined message view.
func (s *Service) GetEmail(ctx context.Context, id int64) (*EmailView, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.store.GetAccount(ctx, m.AccountID)
	if err != nil {
		return nil, err
	}

	v := &EmailView{
		ID:           m.ID,
		Subject:      m.Subject,
		Sender:       a.EmailAddress,
		SenderName:   a.DisplayName,
		Recipients:   emptyWhenNil(m.Recipients),
		Cc:           emptyWhenNil(m.Cc),
		Bcc:          emptyWhenNil(m.Bcc),
		Status:       m.Status,
		Priority:     m.Priority,
		RetryCount:   m.RetryCount,
		Account:      a.Name,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    m.UpdatedAt.Format(time.RFC3339),
		ErrorMessage: m.LastError,
	}
	if m.SentAt != nil {
		sent := m.SentAt.Format(time.RFC3339)
		v.SentAt = &sent
	}
	return v, nil
}

// ListEmailsByStatus returns summary rows, newest capped at limit (100 when
// limit <= 0).
func (s *Service) ListEmailsByStatus(ctx context.Context, status string, limit int) ([]*EmailSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	msgs, err := s.store.ListMessagesByStatus(ctx, status, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*EmailSummary, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &EmailSummary{
			ID:         m.ID,
			Subject:    m.Subject,
			Status:     m.Status,
			Priority:   m.Priority,
			RetryCount: m.RetryCount,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

func emptyWhenNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
