// Package processing holds the flows that coordinate repositories and
// collaborators around a piece of business logic. The password-reset flow
// is the interesting one: it owns the passcode lifecycle and both
// rate-limit windows.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stickerbin/server/auth"
	"github.com/stickerbin/server/datastore"
	"github.com/stickerbin/server/mail"
	"github.com/stickerbin/server/models"
)

const (
	// passcodeValidity bounds both how long an issued passcode can be
	// redeemed and the sliding window for both rate limits.
	passcodeValidity = 600 * time.Second

	// maxPasscodesPerWindow refuses new passcodes once this many
	// non-expired ones already exist for the user.
	maxPasscodesPerWindow = 5

	// maxAttemptsPerWindow refuses reset submissions once this many
	// attempts exist in the window, counting the one being made.
	maxAttemptsPerWindow = 5
)

var (
	// ErrUserNotFound is returned by SubmitReset for an unknown email.
	// RequestPasscode deliberately never returns it: the two operations
	// have asymmetric enumeration policies and that asymmetry is part of
	// the observable contract.
	ErrUserNotFound = errors.New("no account for that email")

	// ErrRateLimited is returned when either window threshold is hit.
	ErrRateLimited = errors.New("too many requests, try again later")

	// ErrInvalidPasscode is returned when the submitted code is not among
	// the user's non-expired passcodes. Wrong and expired codes are
	// indistinguishable to the caller.
	ErrInvalidPasscode = errors.New("invalid or expired passcode")

	// ErrEmailDelivery is returned when the passcode email cannot be sent.
	// The passcode row is already persisted at that point and stays.
	ErrEmailDelivery = errors.New("failed to send passcode email")
)

// UserStore is the slice of the user repository the reset flow needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// PasscodeStore persists issued passcodes and answers window queries over
// them.
type PasscodeStore interface {
	CreatePasscode(ctx context.Context, passcode *models.Passcode) error
	CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error)
	GetPasscodesSince(ctx context.Context, userID string, cutoff time.Time) ([]models.Passcode, error)
}

// ResetAttemptStore persists reset-attempt markers and counts them.
type ResetAttemptStore interface {
	CreateAttempt(ctx context.Context, attempt *models.ResetAttempt) error
	CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error)
}

// PasswordResetProcessor drives the two-step passcode reset flow.
// Every write it makes is an independent atomic insert or update; there is
// no cross-step transaction, so concurrent submissions can race past the
// window thresholds. That weak consistency is accepted.
type PasswordResetProcessor struct {
	users     UserStore
	passcodes PasscodeStore
	attempts  ResetAttemptStore
	sender    mail.Sender
	now       func() time.Time
}

func NewPasswordResetProcessor(
	users UserStore,
	passcodes PasscodeStore,
	attempts ResetAttemptStore,
	sender mail.Sender,
) *PasswordResetProcessor {
	return &PasswordResetProcessor{
		users:     users,
		passcodes: passcodes,
		attempts:  attempts,
		sender:    sender,
		now:       time.Now,
	}
}

// RequestPasscode issues and emails a reset passcode.
//
// An unknown email returns nil: the caller responds with the same success
// message either way, so the endpoint cannot be used to probe which
// addresses are registered.
func (p *PasswordResetProcessor) RequestPasscode(ctx context.Context, email string) error {
	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user for passcode request: %w", err)
	}

	now := p.now()
	count, err := p.passcodes.CountSince(ctx, user.ID, now.Add(-passcodeValidity))
	if err != nil {
		return fmt.Errorf("failed to count recent passcodes: %w", err)
	}
	if count >= maxPasscodesPerWindow {
		return ErrRateLimited
	}

	code, err := auth.GeneratePasscode()
	if err != nil {
		return fmt.Errorf("failed to generate passcode: %w", err)
	}
	passcode := &models.Passcode{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		Content:   code,
	}
	if err := p.passcodes.CreatePasscode(ctx, passcode); err != nil {
		return fmt.Errorf("failed to persist passcode: %w", err)
	}

	// The passcode row stays even when the send fails: the user consumed a
	// slot in the issuance window either way.
	subject := "Reset your stickerbin password"
	body := fmt.Sprintf(
		"Your password reset passcode is %s. Enter it within 10 minutes to continue. If you did not request this, ignore this email.",
		code,
	)
	if err := p.sender.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

// SubmitReset validates a passcode and replaces the user's credential.
//
// The attempt marker is recorded before any check and never rolled back: a
// rate-limited, invalid, or failed submission still consumed one of the
// five slots. A successful reset does not clear the counter either.
func (p *PasswordResetProcessor) SubmitReset(ctx context.Context, email, passcode, newPassword string) error {
	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user for reset: %w", err)
	}

	now := p.now()
	attempt := &models.ResetAttempt{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
	}
	if err := p.attempts.CreateAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record reset attempt: %w", err)
	}

	count, err := p.attempts.CountSince(ctx, user.ID, now.Add(-passcodeValidity))
	if err != nil {
		return fmt.Errorf("failed to count recent reset attempts: %w", err)
	}
	// count includes the attempt just written, so five prior attempts in
	// the window push it past the threshold.
	if count > maxAttemptsPerWindow {
		return ErrRateLimited
	}

	valid, err := p.passcodes.GetPasscodesSince(ctx, user.ID, now.Add(-passcodeValidity))
	if err != nil {
		return fmt.Errorf("failed to load valid passcodes: %w", err)
	}
	if !containsCode(valid, passcode) {
		return ErrInvalidPasscode
	}

	digest, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}
	if err := p.users.UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return nil
}

func containsCode(passcodes []models.Passcode, code string) bool {
	for _, p := range passcodes {
		if p.Content == code {
			return true
		}
	}
	return false
}
