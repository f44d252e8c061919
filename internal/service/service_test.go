package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailrelay/internal/store"
)

type fakeStore struct {
	msgs     map[int64]*store.Message
	accounts map[int64]*store.Account
	nextID   int64
	best     *store.Account
	listed   []*store.Message
	lastLim  int
	patches  []store.AccountPatch
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		msgs:     map[int64]*store.Message{},
		accounts: map[int64]*store.Account{},
		nextID:   100,
	}
}

func (f *fakeStore) CreateMessage(_ context.Context, m *store.Message) (int64, error) {
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.msgs[m.ID] = m
	return m.ID, nil
}

func (f *fakeStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	m, ok := f.msgs[id]
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return m, nil
}

func (f *fakeStore) ListMessagesByStatus(_ context.Context, status string, limit int) ([]*store.Message, error) {
	f.lastLim = limit
	return f.listed, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, a *store.Account) (int64, error) {
	f.nextID++
	a.ID = f.nextID
	f.accounts[a.ID] = a
	return a.ID, nil
}

func (f *fakeStore) GetAccount(_ context.Context, id int64) (*store.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (f *fakeStore) ListAccounts(_ context.Context) ([]*store.Account, error) {
	out := make([]*store.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, id int64, p store.AccountPatch) error {
	if _, ok := f.accounts[id]; !ok {
		return fmt.Errorf("account %d: %w", id, store.ErrNotFound)
	}
	f.patches = append(f.patches, p)
	return nil
}

func (f *fakeStore) SelectBestAccount(_ context.Context, _ int64) (*store.Account, error) {
	return f.best, nil
}

type recordingQueue struct {
	ids        []int64
	priorities []int
}

func (r *recordingQueue) Enqueue(msgID int64, priority int) {
	r.ids = append(r.ids, msgID)
	r.priorities = append(r.priorities, priority)
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func validEmailReq() *CreateEmailRequest {
	return &CreateEmailRequest{
		Subject:     "Hi",
		Recipients:  []string{"a@b.co"},
		HTMLContent: "<p>x</p>",
	}
}

func TestCreateEmailSelectsBestAccount(t *testing.T) {
	fs := newFakeStore()
	fs.best = &store.Account{ID: 3}
	q := &recordingQueue{}
	s := New(fs, q)

	id, err := s.CreateEmail(context.Background(), validEmailReq())
	require.NoError(t, err)

	m := fs.msgs[id]
	assert.Equal(t, int64(3), m.AccountID)
	assert.Equal(t, store.StatusQueued, m.Status)
	assert.Equal(t, store.PriorityHighest, m.Priority)
	assert.Equal(t, []int64{id}, q.ids)
	assert.Equal(t, []int{1}, q.priorities)
}

func TestCreateEmailNoAccountAvailable(t *testing.T) {
	s := New(newFakeStore(), &recordingQueue{})

	_, err := s.CreateEmail(context.Background(), validEmailReq())
	assert.ErrorIs(t, err, ErrNoAccountAvailable)
}

func TestCreateEmailExplicitAccount(t *testing.T) {
	fs := newFakeStore()
	fs.accounts[7] = &store.Account{ID: 7}
	q := &recordingQueue{}
	s := New(fs, q)

	req := validEmailReq()
	req.AccountID = int64Ptr(7)
	req.Priority = intPtr(4)

	id, err := s.CreateEmail(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fs.msgs[id].AccountID)
	assert.Equal(t, []int{4}, q.priorities)
}

func TestCreateEmailUnknownAccountRejected(t *testing.T) {
	s := New(newFakeStore(), &recordingQueue{})

	req := validEmailReq()
	req.AccountID = int64Ptr(99)

	_, err := s.CreateEmail(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "smtp_config_id")
}

func TestCreateEmailValidation(t *testing.T) {
	fs := newFakeStore()
	fs.best = &store.Account{ID: 1}
	s := New(fs, &recordingQueue{})

	tests := []struct {
		name    string
		mutate  func(*CreateEmailRequest)
		message string
	}{
		{"no recipients", func(r *CreateEmailRequest) { r.Recipients = nil }, "Recipients"},
		{"bad recipient", func(r *CreateEmailRequest) { r.Recipients = []string{"nope"} }, "Invalid recipient"},
		{"bad cc", func(r *CreateEmailRequest) { r.Cc = []string{"x@"} }, "Invalid CC"},
		{"bad bcc", func(r *CreateEmailRequest) { r.Bcc = []string{"@y"} }, "Invalid BCC"},
		{"missing subject", func(r *CreateEmailRequest) { r.Subject = "" }, "subject"},
		{"missing body", func(r *CreateEmailRequest) { r.HTMLContent = "" }, "html_content"},
		{"priority too low", func(r *CreateEmailRequest) { r.Priority = intPtr(0) }, "between 1 and 5"},
		{"priority too high", func(r *CreateEmailRequest) { r.Priority = intPtr(6) }, "between 1 and 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validEmailReq()
			tt.mutate(req)

			_, err := s.CreateEmail(context.Background(), req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Message, tt.message)
		})
	}
}

func TestGetEmailJoinsAccount(t *testing.T) {
	fs := newFakeStore()
	fs.accounts[2] = &store.Account{
		ID: 2, Name: "primary", EmailAddress: "no-reply@example.com", DisplayName: "Acme",
	}
	now := time.Now()
	fs.msgs[11] = &store.Message{
		ID: 11, Subject: "Hi", Recipients: []string{"a@b.co"},
		AccountID: 2, Priority: 1, Status: store.StatusQueued,
		CreatedAt: now, UpdatedAt: now,
	}
	s := New(fs, &recordingQueue{})

	v, err := s.GetEmail(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "no-reply@example.com", v.Sender)
	assert.Equal(t, "Acme", v.SenderName)
	assert.Equal(t, "primary", v.Account)
	assert.Nil(t, v.SentAt)
	assert.NotNil(t, v.Cc)
}

func TestListEmailsByStatusDefaultLimit(t *testing.T) {
	fs := newFakeStore()
	fs.listed = []*store.Message{{ID: 1, Subject: "a", Status: store.StatusSent}}
	s := New(fs, &recordingQueue{})

	out, err := s.ListEmailsByStatus(context.Background(), store.StatusSent, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 100, fs.lastLim)
}

func TestCreateAccountDefaults(t *testing.T) {
	fs := newFakeStore()
	s := New(fs, &recordingQueue{})

	id, err := s.CreateAccount(context.Background(), &CreateAccountRequest{
		Name: "primary", EmailAddress: "p@example.com",
		Host: "smtp.example.com", Port: 587,
		Username: "user", Password: "pass",
	})
	require.NoError(t, err)

	a := fs.accounts[id]
	assert.True(t, a.UseTLS)
	assert.False(t, a.UseSSL)
	assert.True(t, a.Active)
}

func TestCreateAccountValidation(t *testing.T) {
	s := New(newFakeStore(), &recordingQueue{})

	tests := []struct {
		name    string
		req     CreateAccountRequest
		message string
	}{
		{"missing name", CreateAccountRequest{}, "name"},
		{"bad email", CreateAccountRequest{
			Name: "x", EmailAddress: "nope", Host: "h", Port: 25, Username: "u", Password: "p",
		}, "email address"},
		{"bad port", CreateAccountRequest{
			Name: "x", EmailAddress: "a@b.co", Host: "h", Port: 70000, Username: "u", Password: "p",
		}, "port"},
		{"bad daily limit", CreateAccountRequest{
			Name: "x", EmailAddress: "a@b.co", Host: "h", Port: 25, Username: "u", Password: "p",
			DailyLimit: intPtr(0),
		}, "Daily limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateAccount(context.Background(), &tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Message, tt.message)
		})
	}
}

func TestUpdateAccountEmptyPatchRejected(t *testing.T) {
	fs := newFakeStore()
	fs.accounts[1] = &store.Account{ID: 1}
	s := New(fs, &recordingQueue{})

	err := s.UpdateAccount(context.Background(), 1, store.AccountPatch{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, fs.patches)
}

func TestUpdateAccountNotFound(t *testing.T) {
	s := New(newFakeStore(), &recordingQueue{})

	active := false
	err := s.UpdateAccount(context.Background(), 9, store.AccountPatch{Active: &active})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetAccountHidesPassword(t *testing.T) {
	fs := newFakeStore()
	fs.accounts[1] = &store.Account{
		ID: 1, Name: "primary", EmailAddress: "p@example.com",
		Password: "secret", DailyLimit: 2000, HourlyLimit: 100,
	}
	s := New(fs, &recordingQueue{})

	v, err := s.GetAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2000, v.DailyLimit)
	assert.Nil(t, v.LastSent)
}
