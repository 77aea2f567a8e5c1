package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stickerbin/server/models"
)

type PasscodeRepository struct {
	db *sql.DB
}

func NewPasscodeRepository(db *sql.DB) *PasscodeRepository {
	return &PasscodeRepository{db: db}
}

func (r *PasscodeRepository) CreatePasscode(ctx context.Context, passcode *models.Passcode) error {
	query := `
		INSERT INTO passcodes (id, user_id, created_at, content)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, passcode.ID, passcode.UserID, passcode.CreatedAt, passcode.Content)
	if err != nil {
		return fmt.Errorf("failed to insert passcode: %w", err)
	}
	return nil
}

// CountSince counts passcodes issued to a user strictly after the cutoff.
// This query over the persisted rows *is* the rate-limit counter: no
// in-memory state, so concurrent or restarted instances all see the same
// window.
func (r *PasscodeRepository) CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM passcodes
		WHERE user_id = $1 AND created_at > $2
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent passcodes: %w", err)
	}
	return count, nil
}

// GetPasscodesSince returns the user's passcodes issued strictly after the
// cutoff, i.e. the set of codes still eligible for a reset. Expired rows are
// simply excluded, never deleted here.
func (r *PasscodeRepository) GetPasscodesSince(ctx context.Context, userID string, cutoff time.Time) ([]models.Passcode, error) {
	query := `
		SELECT id, user_id, created_at, content
		FROM passcodes
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query passcodes: %w", err)
	}
	defer rows.Close()

	var passcodes []models.Passcode
	for rows.Next() {
		var p models.Passcode
		if err := rows.Scan(&p.ID, &p.UserID, &p.CreatedAt, &p.Content); err != nil {
			return nil, fmt.Errorf("failed to scan passcode row: %w", err)
		}
		passcodes = append(passcodes, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passcode rows: %w", err)
	}
	return passcodes, nil
}
