package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/store"
)

// CreateAccountRequest carries the fields of a new SMTP account. Pointer
// fields distinguish "absent" from a zero value.
type CreateAccountRequest struct {
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
	DisplayName  string `json:"display_name"`
	Host         string `json:"smtp_host"`
	Port         int    `json:"smtp_port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	UseTLS       *bool  `json:"use_tls"`
	UseSSL       *bool  `json:"use_ssl"`
	Active       *bool  `json:"active"`
	DailyLimit   *int   `json:"daily_limit"`
	HourlyLimit  *int   `json:"hourly_limit"`
}

// AccountView is the detailed account view. The password never leaves the
// store through this surface.
type AccountView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	EmailAddress string  `json:"email_address"`
	DisplayName  string  `json:"display_name"`
	Host         string  `json:"smtp_host"`
	Port         int     `json:"smtp_port"`
	Username     string  `json:"username"`
	Active       bool    `json:"active"`
	DailyLimit   int     `json:"daily_limit"`
	HourlyLimit  int     `json:"hourly_limit"`
	SentToday    int     `json:"sent_count_today"`
	SentHour     int     `json:"sent_count_hour"`
	LastSent     *string `json:"last_sent"`
	CreatedAt    string  `json:"created_at"`
}

// AccountSummary is one row of the account listing.
type AccountSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
	Active       bool   `json:"active"`
	DailyLimit   int    `json:"daily_limit"`
	SentToday    int    `json:"sent_count_today"`
	SentHour     int    `json:"sent_count_hour"`
}

// CreateAccount validates and persists an account. use_tls and active
// default to true, use_ssl to false; limit defaults come from the store.
func (s *Service) CreateAccount(ctx context.Context, req *CreateAccountRequest) (int64, error) {
	if err := validateCreateAccount(req); err != nil {
		return 0, err
	}

	a := &store.Account{
		Name:         req.Name,
		EmailAddress: req.EmailAddress,
		DisplayName:  req.DisplayName,
		Host:         req.Host,
		Port:         req.Port,
		Username:     req.Username,
		Password:     req.Password,
		UseTLS:       true,
		Active:       true,
	}
	if req.UseTLS != nil {
		a.UseTLS = *req.UseTLS
	}
	if req.UseSSL != nil {
		a.UseSSL = *req.UseSSL
	}
	if req.Active != nil {
		a.Active = *req.Active
	}
	if req.DailyLimit != nil {
		a.DailyLimit = *req.DailyLimit
	}
	if req.HourlyLimit != nil {
		a.HourlyLimit = *req.HourlyLimit
	}

	id, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("persist account: %w", err)
	}
	logger.Info("smtp account created", "account_id", id, "name", a.Name)
	return id, nil
}

// UpdateAccount applies a partial update. An empty patch is rejected.
func (s *Service) UpdateAccount(ctx context.Context, id int64, p store.AccountPatch) error {
	if err := validateAccountPatch(p); err != nil {
		return err
	}
	return s.store.UpdateAccount(ctx, id, p)
}

// GetAccount returns the detailed account view.
func (s *Service) GetAccount(ctx context.Context, id int64) (*AccountView, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return accountView(a), nil
}

// ListAccounts returns summary rows for every account.
func (s *Service) ListAccounts(ctx context.Context) ([]*AccountSummary, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, &AccountSummary{
			ID:           a.ID,
			Name:         a.Name,
			EmailAddress: a.EmailAddress,
			Active:       a.Active,
			DailyLimit:   a.DailyLimit,
			SentToday:    a.SentToday,
			SentHour:     a.SentHour,
		})
	}
	return out, nil
}

func accountView(a *store.Account) *AccountView {
	v := &AccountView{
		ID:           a.ID,
		Name:         a.Name,
		EmailAddress: a.EmailAddress,
		DisplayName:  a.DisplayName,
		Host:         a.Host,
		Port:         a.Port,
		Username:     a.Username,
		Active:       a.Active,
		DailyLimit:   a.DailyLimit,
		HourlyLimit:  a.HourlyLimit,
		SentToday:    a.SentToday,
		SentHour:     a.SentHour,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
	if a.LastSent != nil {
		last := a.LastSent.Format(time.RFC3339)
		v.LastSent = &last
	}
	return v
}
