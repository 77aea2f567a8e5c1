package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/stickerbin/server/models"
)

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (id, user_id, created_at, name)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, group.ID, group.UserID, group.CreatedAt, group.Name)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

func (r *GroupRepository) GetGroupByID(ctx context.Context, groupID string) (*models.Group, error) {
	query := `
		SELECT id, user_id, created_at, name
		FROM groups
		WHERE id = $1
	`
	var group models.Group
	row := r.db.QueryRowContext(ctx, query, groupID)
	err := row.Scan(&group.ID, &group.UserID, &group.CreatedAt, &group.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group by ID: %w", err)
	}
	return &group, nil
}

// GetGroupSummaries lists a user's groups in creation order, each with its
// count of non-deleted images, matching the sidebar the front-end renders.
func (r *GroupRepository) GetGroupSummaries(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	query := `
		SELECT g.id, g.name,
		       COUNT(i.id) FILTER (WHERE i.is_deleted = FALSE)
		FROM groups g
		LEFT JOIN images i ON i.group_id = g.id
		WHERE g.user_id = $1
		GROUP BY g.id, g.name, g.created_at
		ORDER BY g.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.GroupSummary
	for rows.Next() {
		var summary models.GroupSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.ImageNumber); err != nil {
			return nil, fmt.Errorf("failed to scan group summary row: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group summary rows: %w", err)
	}
	return summaries, nil
}

func (r *GroupRepository) RenameGroup(ctx context.Context, groupID, name string) error {
	query := `UPDATE groups SET name = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, groupID, name)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroups removes the given group rows in one statement. The schema
// cascades the delete to each group's images and on to their tags
// (ON DELETE CASCADE on images.group_id and tags.image_id).
func (r *GroupRepository) DeleteGroups(ctx context.Context, groupIDs []string) error {
	query := `DELETE FROM groups WHERE id = ANY($1)`
	result, err := r.db.ExecContext(ctx, query, pq.Array(groupIDs))
	if err != nil {
		return fmt.Errorf("failed to delete groups: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows < int64(len(groupIDs)) {
		return ErrNotFound
	}
	return nil
}
