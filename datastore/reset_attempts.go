package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stickerbin/server/models"
)

type ResetAttemptRepository struct {
	db *sql.DB
}

func NewResetAttemptRepository(db *sql.DB) *ResetAttemptRepository {
	return &ResetAttemptRepository{db: db}
}

// CreateAttempt records one reset submission. The flow inserts this row
// before any validation, and nothing ever rolls it back: a failed (or even
// rate-limited) submission still counts toward the window.
func (r *ResetAttemptRepository) CreateAttempt(ctx context.Context, attempt *models.ResetAttempt) error {
	query := `
		INSERT INTO reset_attempts (id, user_id, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, attempt.ID, attempt.UserID, attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reset attempt: %w", err)
	}
	return nil
}

// CountSince counts a user's reset attempts recorded strictly after the
// cutoff. See PasscodeRepository.CountSince for the shared-log rationale.
func (r *ResetAttemptRepository) CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM reset_attempts
		WHERE user_id = $1 AND created_at > $2
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent reset attempts: %w", err)
	}
	return count, nil
}
