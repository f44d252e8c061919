package store

import "time"

// Message statuses. A message is terminal in StatusSent, or in StatusFailed
// once its retry budget is spent.
const (
	StatusQueued  = "queued"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Priority bounds. Lower is more urgent.
const (
	PriorityHighest = 1
	PriorityLowest  = 5
)

// Message is a submitted email awaiting or completing delivery.
type Message struct {
	ID         int64
	Subject    string
	HTMLBody   string
	Recipients []string
	Cc         []string
	Bcc        []string
	AccountID  int64
	Priority   int
	Status     string
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SentAt     *time.Time
}

// EnvelopeRecipients returns recipients + cc + bcc in order, for the SMTP
// envelope.
func (m *Message) EnvelopeRecipients() []string {
	all := make([]string, 0, len(m.Recipients)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.Recipients...)
	all = append(all, m.Cc...)
	all = append(all, m.Bcc...)
	return all
}

// Account is one upstream SMTP identity with its own rate budget.
type Account struct {
	ID              int64
	Name            string
	EmailAddress    string
	DisplayName     string
	Host            string
	Port            int
	Username        string
	Password        string
	UseTLS          bool
	UseSSL          bool
	Active          bool
	DailyLimit      int
	HourlyLimit     int
	SentToday       int
	SentHour        int
	LastSent        *time.Time
	LastResetDaily  time.Time
	LastResetHourly time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccountPatch is a partial update for UpdateAccount. Nil fields are left
// untouched.
type AccountPatch struct {
	Name         *string
	EmailAddress *string
	DisplayName  *string
	Host         *string
	Port         *int
	Username     *string
	Password     *string
	UseTLS       *bool
	UseSSL       *bool
	Active       *bool
	DailyLimit   *int
	HourlyLimit  *int
}

// Empty reports whether the patch carries no changes.
func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.EmailAddress == nil && p.DisplayName == nil &&
		p.Host == nil && p.Port == nil && p.Username == nil && p.Password == nil &&
		p.UseTLS == nil && p.UseSSL == nil && p.Active == nil &&
		p.DailyLimit == nil && p.HourlyLimit == nil
}
