package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a message or account lookup misses.
var ErrNotFound = errors.New("not found")

// Store provides database operations for messages and accounts. All
// multi-field updates are single statements or transactions, so concurrent
// workers never observe partial writes.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	email_address TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	host TEXT NOT NULL,
	port INTEGER NOT NULL,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	use_tls INTEGER NOT NULL DEFAULT 1,
	use_ssl INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	daily_limit INTEGER NOT NULL DEFAULT 2000,
	hourly_limit INTEGER NOT NULL DEFAULT 100,
	sent_today INTEGER NOT NULL DEFAULT 0,
	sent_hour INTEGER NOT NULL DEFAULT 0,
	last_sent TIMESTAMP,
	last_reset_daily TIMESTAMP NOT NULL,
	last_reset_hourly TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL,
	html_body TEXT NOT NULL,
	recipients TEXT NOT NULL,
	cc TEXT,
	bcc TEXT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	priority INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL DEFAULT 'queued',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	sent_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status);
`

// Open opens (creating if needed) the embedded database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	// _time_format=sqlite stores time.Time values in a form SQLite's
	// date()/datetime() functions can parse; the driver's default Go
	// String() form is opaque to them, which would leave the lazy counter
	// resets permanently inert.
	db, err := sql.Open("sqlite", path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The sqlite driver serializes writers; a single connection avoids
	// SQLITE_BUSY churn under worker contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateMessage persists a new message and returns its id. Status defaults
// to queued; priority is stored as given (validated by the caller).
func (s *Store) CreateMessage(ctx context.Context, m *Message) (int64, error) {
	now := time.Now()
	if m.Status == "" {
		m.Status = StatusQueued
	}
	recipients, err := json.Marshal(m.Recipients)
	if err != nil {
		return 0, fmt.Errorf("encode recipients: %w", err)
	}
	cc := marshalList(m.Cc)
	bcc := marshalList(m.Bcc)

	res, err := s.db.ExecContext(ctx, `INSERT INTO messages
		(subject, html_body, recipients, cc, bcc, account_id, priority, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		m.Subject, m.HTMLBody, string(recipients), cc, bcc, m.AccountID, m.Priority, m.Status, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return id, nil
}

const messageColumns = `id, subject, html_body, recipients, cc, bcc, account_id, priority,
		status, retry_count, COALESCE(last_error, ''), created_at, updated_at, sent_at`

// GetMessage retrieves a message by id. Returns ErrNotFound when absent.
func (s *Store) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	return m, err
}

// ListMessagesByStatus retrieves up to limit messages in the given status,
// oldest first. A non-positive limit returns everything.
func (s *Store) ListMessagesByStatus(ctx context.Context, status string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE status = ? ORDER BY id LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpdateMessageStatus transitions a message and records the error text, if
// any. sent_at is stamped exactly when the new status is sent.
func (s *Store) UpdateMessageStatus(ctx context.Context, id int64, status, errMsg string) error {
	now := time.Now()
	query := `UPDATE messages SET status = ?, updated_at = ?`
	args := []interface{}{status, now}
	if status == StatusSent {
		query += `, sent_at = ?`
		args = append(args, now)
	}
	if errMsg != "" {
		query += `, last_error = ?`
		args = append(args, errMsg)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update message %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	return nil
}

// IncrementRetry bumps the retry counter by one.
func (s *Store) IncrementRetry(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		time.Now(), id)
	return err
}

// SetMessageAccount rebinds a message to a different account (failover).
func (s *Store) SetMessageAccount(ctx context.Context, id, accountID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET account_id = ?, updated_at = ? WHERE id = ?`,
		accountID, time.Now(), id)
	return err
}

// RequeueInFlight resets messages stuck in sending back to queued. Called at
// startup: a send interrupted by a crash is retried rather than lost.
func (s *Store) RequeueInFlight(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, updated_at = ? WHERE status = ?`,
		StatusQueued, time.Now(), StatusSending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func marshalList(list []string) interface{} {
	if len(list) == 0 {
		return nil
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func unmarshalList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return nil
	}
	return list
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	m := &Message{}
	var recipients string
	var cc, bcc sql.NullString
	var sentAt sql.NullTime
	err := row.Scan(&m.ID, &m.Subject, &m.HTMLBody, &recipients, &cc, &bcc,
		&m.AccountID, &m.Priority, &m.Status, &m.RetryCount, &m.LastError,
		&m.CreatedAt, &m.UpdatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(recipients), &m.Recipients); err != nil {
		return nil, fmt.Errorf("decode recipients for message %d: %w", m.ID, err)
	}
	m.Cc = unmarshalList(cc)
	m.Bcc = unmarshalList(bcc)
	if sentAt.Valid {
		m.SentAt = &sentAt.Time
	}
	return m, nil
}
