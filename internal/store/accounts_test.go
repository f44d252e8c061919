package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email_address", "display_name", "host", "port", "username", "password",
		"use_tls", "use_ssl", "active", "daily_limit", "hourly_limit", "sent_today", "sent_hour",
		"last_sent", "last_reset_daily", "last_reset_hourly", "created_at", "updated_at",
	})
}

func addAccountRow(rows *sqlmock.Rows, id int64, name string, sentToday, dailyLimit int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, name, name+"@example.com", "", "smtp.example.com", 587,
		"user", "pass", true, false, true, dailyLimit, 100, sentToday, 0,
		nil, now, now, now, now)
}

func TestClaimSendSlotSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET sent_today = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET sent_hour = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`sent_today < daily_limit AND sent_hour < hourly_limit`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := s.ClaimSendSlot(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimSendSlotDeniedAtBudget(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET sent_today = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET sent_hour = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	// Guarded update matches no row: at budget, or inactive.
	mock.ExpectExec(`sent_today < daily_limit AND sent_hour < hourly_limit`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := s.ClaimSendSlot(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectBestAccountOrdersByUtilization(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SET sent_today = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET sent_hour = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`ORDER BY CAST\(sent_today AS REAL\) / daily_limit ASC, id ASC LIMIT 1`).
		WillReturnRows(addAccountRow(accountRows(), 2, "backup", 0, 10))

	a, err := s.SelectBestAccount(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, int64(2), a.ID)
}

func TestSelectBestAccountExcludes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SET sent_today = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET sent_hour = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`AND id != \?`).
		WithArgs(int64(1)).
		WillReturnRows(addAccountRow(accountRows(), 3, "other", 1, 10))

	a, err := s.SelectBestAccount(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, int64(3), a.ID)
}

func TestSelectBestAccountNone(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SET sent_today = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET sent_hour = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM accounts`).WillReturnRows(accountRows())

	a, err := s.SelectBestAccount(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestUpdateAccountEmptyPatchRejected(t *testing.T) {
	s, _ := newMockStore(t)

	err := s.UpdateAccount(context.Background(), 1, AccountPatch{})
	assert.Error(t, err)
}

func TestUpdateAccountPartial(t *testing.T) {
	s, mock := newMockStore(t)

	active := false
	mock.ExpectExec(`UPDATE accounts SET active = \?, updated_at = \? WHERE id = \?`).
		WithArgs(false, sqlmock.AnyArg(), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateAccount(context.Background(), 4, AccountPatch{Active: &active}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAccountNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	limit := 50
	mock.ExpectExec(`UPDATE accounts SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateAccount(context.Background(), 9, AccountPatch{DailyLimit: &limit})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAccountAppliesLimitDefaults(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs("primary", "p@example.com", "", "smtp.example.com", 587, "user", "pass",
			true, false, true, 2000, 100,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := &Account{
		Name: "primary", EmailAddress: "p@example.com",
		Host: "smtp.example.com", Port: 587,
		Username: "user", Password: "pass",
		UseTLS: true, Active: true,
	}
	id, err := s.CreateAccount(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 2000, a.DailyLimit)
	assert.Equal(t, 100, a.HourlyLimit)
}
