package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const accountColumns = `id, name, email_address, display_name, host, port, username, password,
		use_tls, use_ssl, active, daily_limit, hourly_limit, sent_today, sent_hour,
		last_sent, last_reset_daily, last_reset_hourly, created_at, updated_at`

// CreateAccount persists a new account and returns its id. Limits default to
// 2000/day and 100/hour when unset.
func (s *Store) CreateAccount(ctx context.Context, a *Account) (int64, error) {
	now := time.Now()
	if a.DailyLimit == 0 {
		a.DailyLimit = 2000
	}
	if a.HourlyLimit == 0 {
		a.HourlyLimit = 100
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO accounts
		(name, email_address, display_name, host, port, username, password,
		use_tls, use_ssl, active, daily_limit, hourly_limit, sent_today, sent_hour,
		last_reset_daily, last_reset_hourly, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?)`,
		a.Name, a.EmailAddress, a.DisplayName, a.Host, a.Port, a.Username, a.Password,
		a.UseTLS, a.UseSSL, a.Active, a.DailyLimit, a.HourlyLimit, now, now, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// GetAccount retrieves an account by id. Returns ErrNotFound when absent.
func (s *Store) GetAccount(ctx context.Context, id int64) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return a, err
}

// ListAccounts retrieves every account, ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccount applies a partial update. An empty patch is rejected so a
// bad PUT body cannot silently succeed.
func (s *Store) UpdateAccount(ctx context.Context, id int64, p AccountPatch) error {
	if p.Empty() {
		return fmt.Errorf("account %d: empty update", id)
	}

	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.EmailAddress != nil {
		add("email_address", *p.EmailAddress)
	}
	if p.DisplayName != nil {
		add("display_name", *p.DisplayName)
	}
	if p.Host != nil {
		add("host", *p.Host)
	}
	if p.Port != nil {
		add("port", *p.Port)
	}
	if p.Username != nil {
		add("username", *p.Username)
	}
	if p.Password != nil {
		add("password", *p.Password)
	}
	if p.UseTLS != nil {
		add("use_tls", *p.UseTLS)
	}
	if p.UseSSL != nil {
		add("use_ssl", *p.UseSSL)
	}
	if p.Active != nil {
		add("active", *p.Active)
	}
	if p.DailyLimit != nil {
		add("daily_limit", *p.DailyLimit)
	}
	if p.HourlyLimit != nil {
		add("hourly_limit", *p.HourlyLimit)
	}
	add("updated_at", time.Now())

	query := `UPDATE accounts SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return nil
}

// ClaimSendSlot reserves one send slot against the account's budgets inside a
// single transaction: lazy counter resets, then a guarded increment of both
// counters. Returns true iff the reservation succeeded. Two workers racing
// for the last slot serialize on the row write; exactly one wins.
func (s *Store) ClaimSendSlot(ctx context.Context, accountID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now()
	if err := resetCounters(ctx, tx, accountID, now); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE accounts
		SET sent_today = sent_today + 1, sent_hour = sent_hour + 1, last_sent = ?, updated_at = ?
		WHERE id = ? AND active = 1 AND sent_today < daily_limit AND sent_hour < hourly_limit`,
		now, now, accountID)
	if err != nil {
		return false, fmt.Errorf("claim slot for account %d: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n == 1, nil
}

// SelectBestAccount returns the live account with the lowest daily
// utilization, excluding excludeID when non-zero. Advisory only: the
// authoritative budget check is ClaimSendSlot at send time. Returns
// (nil, nil) when no account qualifies.
func (s *Store) SelectBestAccount(ctx context.Context, excludeID int64) (*Account, error) {
	// Apply lazy resets across the table so stale counters cannot hide an
	// eligible account.
	now := time.Now()
	if err := resetAllCounters(ctx, s.db, now); err != nil {
		return nil, err
	}

	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE active = 1 AND sent_today < daily_limit AND sent_hour < hourly_limit`
	args := []interface{}{}
	if excludeID != 0 {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY CAST(sent_today AS REAL) / daily_limit ASC, id ASC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// resetCounters zeroes one account's stale counters: sent_today when the
// wall date has advanced past last_reset_daily, sent_hour when an hour has
// elapsed since last_reset_hourly.
func resetCounters(ctx context.Context, e execer, accountID int64, now time.Time) error {
	if _, err := e.ExecContext(ctx, `UPDATE accounts
		SET sent_today = 0, last_reset_daily = ?
		WHERE id = ? AND date(last_reset_daily) < date(?)`,
		now, accountID, now); err != nil {
		return fmt.Errorf("daily reset for account %d: %w", accountID, err)
	}
	if _, err := e.ExecContext(ctx, `UPDATE accounts
		SET sent_hour = 0, last_reset_hourly = ?
		WHERE id = ? AND datetime(last_reset_hourly) <= datetime(?, '-1 hour')`,
		now, accountID, now); err != nil {
		return fmt.Errorf("hourly reset for account %d: %w", accountID, err)
	}
	return nil
}

func resetAllCounters(ctx context.Context, e execer, now time.Time) error {
	if _, err := e.ExecContext(ctx, `UPDATE accounts
		SET sent_today = 0, last_reset_daily = ?
		WHERE date(last_reset_daily) < date(?)`, now, now); err != nil {
		return fmt.Errorf("daily reset: %w", err)
	}
	if _, err := e.ExecContext(ctx, `UPDATE accounts
		SET sent_hour = 0, last_reset_hourly = ?
		WHERE datetime(last_reset_hourly) <= datetime(?, '-1 hour')`, now, now); err != nil {
		return fmt.Errorf("hourly reset: %w", err)
	}
	return nil
}

func scanAccount(row rowScanner) (*Account, error) {
	a := &Account{}
	var lastSent sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.EmailAddress, &a.DisplayName, &a.Host, &a.Port,
		&a.Username, &a.Password, &a.UseTLS, &a.UseSSL, &a.Active,
		&a.DailyLimit, &a.HourlyLimit, &a.SentToday, &a.SentHour,
		&lastSent, &a.LastResetDaily, &a.LastResetHourly, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastSent.Valid {
		a.LastSent = &lastSent.Time
	}
	return a, nil
}
