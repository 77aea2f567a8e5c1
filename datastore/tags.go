package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stickerbin/server/models"
)

type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) CreateTag(ctx context.Context, tag *models.Tag) error {
	query := `
		INSERT INTO tags (id, user_id, image_id, created_at, text)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, tag.ID, tag.UserID, tag.ImageID, tag.CreatedAt, tag.Text)
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

func (r *TagRepository) GetTagByID(ctx context.Context, tagID string) (*models.Tag, error) {
	query := `
		SELECT id, user_id, image_id, created_at, text
		FROM tags
		WHERE id = $1
	`
	var tag models.Tag
	row := r.db.QueryRowContext(ctx, query, tagID)
	err := row.Scan(&tag.ID, &tag.UserID, &tag.ImageID, &tag.CreatedAt, &tag.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tag by ID: %w", err)
	}
	return &tag, nil
}

// GetTagsForUser lists a user's tags, optionally narrowed to one image.
func (r *TagRepository) GetTagsForUser(ctx context.Context, userID, imageID string) ([]models.Tag, error) {
	query := `
		SELECT id, user_id, image_id, created_at, text
		FROM tags
		WHERE user_id = $1
	`
	args := []any{userID}
	if imageID != "" {
		query += ` AND image_id = $2`
		args = append(args, imageID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.ImageID, &tag.CreatedAt, &tag.Text); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return tags, nil
}

func (r *TagRepository) RenameTag(ctx context.Context, tagID, text string) error {
	query := `UPDATE tags SET text = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, tagID, text)
	if err != nil {
		return fmt.Errorf("failed to rename tag: %w", err)
	}
	return requireRowAffected(result)
}

func (r *TagRepository) DeleteTag(ctx context.Context, tagID string) error {
	query := `DELETE FROM tags WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, tagID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return requireRowAffected(result)
}
