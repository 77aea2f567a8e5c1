package processing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stickerbin/server/auth"
	"github.com/stickerbin/server/datastore"
	"github.com/stickerbin/server/models"
)

type fakeUserStore struct {
	byEmail map[string]*models.User
	updated map[string]string // userID -> new hash
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{byEmail: map[string]*models.User{}, updated: map[string]string{}}
	for _, u := range users {
		s.byEmail[u.Email] = u
	}
	return s
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.updated[userID] = hash
	return nil
}

type fakePasscodeStore struct {
	rows []models.Passcode
}

func (s *fakePasscodeStore) CreatePasscode(_ context.Context, p *models.Passcode) error {
	s.rows = append(s.rows, *p)
	return nil
}

func (s *fakePasscodeStore) CountSince(_ context.Context, userID string, cutoff time.Time) (int, error) {
	count := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *fakePasscodeStore) GetPasscodesSince(_ context.Context, userID string, cutoff time.Time) ([]models.Passcode, error) {
	var out []models.Passcode
	for _, row := range s.rows {
		if row.UserID == userID && row.CreatedAt.After(cutoff) {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeAttemptStore struct {
	rows []models.ResetAttempt
}

func (s *fakeAttemptStore) CreateAttempt(_ context.Context, a *models.ResetAttempt) error {
	s.rows = append(s.rows, *a)
	return nil
}

func (s *fakeAttemptStore) CountSince(_ context.Context, userID string, cutoff time.Time) (int, error) {
	count := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

type fakeSender struct {
	sent []string // bodies
	to   []string
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, _, body string) error {
	if s.err != nil {
		return s.err
	}
	s.to = append(s.to, to)
	s.sent = append(s.sent, body)
	return nil
}

type resetFixture struct {
	users     *fakeUserStore
	passcodes *fakePasscodeStore
	attempts  *fakeAttemptStore
	sender    *fakeSender
	proc      *PasswordResetProcessor
	now       time.Time
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	hash, err := auth.HashPassword("old-password")
	require.NoError(t, err)

	f := &resetFixture{
		users: newFakeUserStore(&models.User{
			ID:           "user-1",
			Email:        "a@x.com",
			PasswordHash: hash,
		}),
		passcodes: &fakePasscodeStore{},
		attempts:  &fakeAttemptStore{},
		sender:    &fakeSender{},
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.proc = NewPasswordResetProcessor(f.users, f.passcodes, f.attempts, f.sender)
	f.proc.now = func() time.Time { return f.now }
	return f
}

func (f *resetFixture) issuePasscode(userID, code string, age time.Duration) {
	f.passcodes.rows = append(f.passcodes.rows, models.Passcode{
		ID:        fmt.Sprintf("pc-%d", len(f.passcodes.rows)),
		UserID:    userID,
		CreatedAt: f.now.Add(-age),
		Content:   code,
	})
}

func TestRequestPasscodeUnknownEmailIsSilent(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)

	err := f.proc.RequestPasscode(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	require.Empty(t, f.passcodes.rows, "no passcode may be issued for unknown emails")
	require.Empty(t, f.sender.sent, "no email may be sent for unknown emails")
}

func TestRequestPasscodeIssuesAndEmails(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)

	err := f.proc.RequestPasscode(context.Background(), "a@x.com")
	require.NoError(t, err)

	require.Len(t, f.passcodes.rows, 1)
	issued := f.passcodes.rows[0]
	require.Equal(t, "user-1", issued.UserID)
	require.Len(t, issued.Content, auth.PasscodeLength)
	require.Equal(t, f.now, issued.CreatedAt)

	require.Equal(t, []string{"a@x.com"}, f.sender.to)
	require.Contains(t, f.sender.sent[0], issued.Content)
}

func TestRequestPasscodeRateLimited(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	for i := 0; i < 5; i++ {
		f.issuePasscode("user-1", fmt.Sprintf("11111%d", i), time.Duration(i)*time.Minute)
	}

	err := f.proc.RequestPasscode(context.Background(), "a@x.com")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Len(t, f.passcodes.rows, 5, "no sixth passcode may be issued")
	require.Empty(t, f.sender.sent)
}

func TestRequestPasscodeWindowSlides(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	for i := 0; i < 5; i++ {
		f.issuePasscode("user-1", fmt.Sprintf("11111%d", i), 10*time.Minute)
	}

	// All five previous codes sit just outside the 600s window.
	f.now = f.now.Add(time.Second)
	err := f.proc.RequestPasscode(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, f.passcodes.rows, 6)
}

func TestRequestPasscodeEmailFailureKeepsRow(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	f.sender.err = errors.New("smtp is down")

	err := f.proc.RequestPasscode(context.Background(), "a@x.com")
	require.ErrorIs(t, err, ErrEmailDelivery)
	require.Len(t, f.passcodes.rows, 1, "issued passcode is not rolled back on send failure")
}

func TestSubmitResetUnknownUser(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)

	err := f.proc.SubmitReset(context.Background(), "ghost@x.com", "123456", "new-password")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Empty(t, f.attempts.rows, "no attempt is recorded without a user to charge it to")
}

func TestSubmitResetSuccess(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	f.issuePasscode("user-1", "424242", time.Minute)

	err := f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "new-password")
	require.NoError(t, err)

	hash, ok := f.users.updated["user-1"]
	require.True(t, ok, "credential must be updated")
	require.True(t, auth.CheckPassword(hash, "new-password"))
	require.Len(t, f.attempts.rows, 1, "successful resets still record their attempt")
}

func TestSubmitResetWrongCode(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	f.issuePasscode("user-1", "424242", time.Minute)

	err := f.proc.SubmitReset(context.Background(), "a@x.com", "999999", "new-password")
	require.ErrorIs(t, err, ErrInvalidPasscode)
	require.Empty(t, f.users.updated)
	require.Len(t, f.attempts.rows, 1, "failed attempts persist for rate limiting")
}

func TestSubmitResetExpiryBoundary(t *testing.T) {
	t.Parallel()

	t.Run("code aged 601s is rejected", func(t *testing.T) {
		f := newResetFixture(t)
		f.issuePasscode("user-1", "424242", 601*time.Second)
		err := f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "new-password")
		require.ErrorIs(t, err, ErrInvalidPasscode)
	})

	t.Run("code aged 599s is accepted", func(t *testing.T) {
		f := newResetFixture(t)
		f.issuePasscode("user-1", "424242", 599*time.Second)
		err := f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "new-password")
		require.NoError(t, err)
	})
}

func TestSubmitResetOtherUsersCode(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	// Same code string, but issued to someone else.
	f.issuePasscode("user-2", "424242", time.Minute)

	err := f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "new-password")
	require.ErrorIs(t, err, ErrInvalidPasscode)
}

func TestSubmitResetAttemptWindow(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	f.issuePasscode("user-1", "424242", time.Minute)

	// Five rapid submissions with a wrong code all fail on the code check.
	for i := 0; i < 5; i++ {
		err := f.proc.SubmitReset(context.Background(), "a@x.com", "000000", "new-password")
		require.ErrorIs(t, err, ErrInvalidPasscode, "attempt %d", i+1)
	}

	// The sixth is refused by the window before the code is even looked at,
	// correct passcode or not.
	err := f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "new-password")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Len(t, f.attempts.rows, 6, "the rate-limited attempt is itself recorded")

	// Once the window slides past the burst, submissions work again.
	f.now = f.now.Add(passcodeValidity + time.Second)
	f.issuePasscode("user-1", "777777", time.Minute)
	err = f.proc.SubmitReset(context.Background(), "a@x.com", "777777", "new-password")
	require.NoError(t, err)
}

func TestSubmitResetSuccessDoesNotClearAttempts(t *testing.T) {
	t.Parallel()
	f := newResetFixture(t)
	f.issuePasscode("user-1", "424242", time.Minute)

	for i := 0; i < 4; i++ {
		err := f.proc.SubmitReset(context.Background(), "a@x.com", "000000", "new-password")
		require.ErrorIs(t, err, ErrInvalidPasscode)
	}
	require.NoError(t, f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "new-password"))

	// The success consumed the fifth slot and did not reset the counter, so
	// the next submission in the window is refused.
	err := f.proc.SubmitReset(context.Background(), "a@x.com", "424242", "another-password")
	require.ErrorIs(t, err, ErrRateLimited)
}
