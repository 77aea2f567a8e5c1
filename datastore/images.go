package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/stickerbin/server/models"
)

type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// ImageFilter narrows ListImages. UserID is mandatory: every image query is
// scoped to its owner. GroupID and Tag are optional search terms; RecycleBin
// flips the listing to soft-deleted images only.
type ImageFilter struct {
	UserID     string
	GroupID    string // exact group match when non-empty
	Tag        string // substring match against tag text when non-empty
	RecycleBin bool
	Page       int
	PerPage    int
	AscOrder   bool
}

// CreateImage inserts the image row and its initial tags in one
// transaction, so a failed tag insert never leaves an untagged orphan.
func (r *ImageRepository) CreateImage(ctx context.Context, image *models.Image) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback is safe even if Commit succeeds

	imageQuery := `
		INSERT INTO images (id, user_id, group_id, created_at, type, is_deleted, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var groupID any
	if image.GroupID != nil {
		groupID = *image.GroupID
	}
	_, err = tx.ExecContext(ctx, imageQuery,
		image.ID, image.UserID, groupID, image.CreatedAt, image.Type, image.IsDeleted, image.Data)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}

	tagQuery := `
		INSERT INTO tags (id, user_id, image_id, created_at, text)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, tag := range image.Tags {
		if _, err := tx.ExecContext(ctx, tagQuery, tag.ID, tag.UserID, tag.ImageID, tag.CreatedAt, tag.Text); err != nil {
			return fmt.Errorf("failed to insert tag for image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit image insert: %w", err)
	}
	return nil
}

// GetImageByID fetches a single image including its binary data.
func (r *ImageRepository) GetImageByID(ctx context.Context, imageID string) (*models.Image, error) {
	query := `
		SELECT id, user_id, group_id, created_at, type, is_deleted, data
		FROM images
		WHERE id = $1
	`
	var image models.Image
	var groupID sql.NullString
	row := r.db.QueryRowContext(ctx, query, imageID)
	err := row.Scan(&image.ID, &image.UserID, &groupID, &image.CreatedAt, &image.Type, &image.IsDeleted, &image.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get image by ID: %w", err)
	}
	if groupID.Valid {
		image.GroupID = &groupID.String
	}
	return &image, nil
}

// ListImages returns one page of image metadata (no binary data) matching
// the filter, plus pagination totals computed from the same predicate.
func (r *ImageRepository) ListImages(ctx context.Context, filter ImageFilter) ([]models.Image, models.Pagination, error) {
	where := `WHERE i.user_id = $1`
	args := []any{filter.UserID}

	if filter.RecycleBin {
		where += ` AND i.is_deleted = TRUE`
	} else {
		where += ` AND i.is_deleted = FALSE`
		if filter.GroupID != "" {
			args = append(args, filter.GroupID)
			where += fmt.Sprintf(` AND i.group_id = $%d`, len(args))
		}
	}
	if filter.Tag != "" {
		args = append(args, "%"+filter.Tag+"%")
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM tags t WHERE t.image_id = i.id AND t.text LIKE $%d
		)`, len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM images i ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to count images: %w", err)
	}

	order := `i.created_at DESC`
	if filter.AscOrder {
		order = `i.created_at`
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}
	args = append(args, perPage, (page-1)*perPage)
	listQuery := fmt.Sprintf(`
		SELECT i.id, i.user_id, i.group_id, i.created_at, i.type, i.is_deleted
		FROM images i
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []models.Image
	var imageIDs []string
	for rows.Next() {
		var image models.Image
		var groupID sql.NullString
		if err := rows.Scan(&image.ID, &image.UserID, &groupID, &image.CreatedAt, &image.Type, &image.IsDeleted); err != nil {
			return nil, models.Pagination{}, fmt.Errorf("failed to scan image row: %w", err)
		}
		if groupID.Valid {
			image.GroupID = &groupID.String
		}
		image.Tags = []models.Tag{}
		images = append(images, image)
		imageIDs = append(imageIDs, image.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("error iterating image rows: %w", err)
	}

	if err := r.attachTags(ctx, images, imageIDs); err != nil {
		return nil, models.Pagination{}, err
	}

	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	pagination := models.Pagination{
		Pages:   pages,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}
	return images, pagination, nil
}

// attachTags loads the tags for one page of images in a single query
// instead of one query per image.
func (r *ImageRepository) attachTags(ctx context.Context, images []models.Image, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}
	query := `
		SELECT id, user_id, image_id, created_at, text
		FROM tags
		WHERE image_id = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(imageIDs))
	if err != nil {
		return fmt.Errorf("failed to query tags for images: %w", err)
	}
	defer rows.Close()

	byImage := make(map[string][]models.Tag, len(imageIDs))
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.ImageID, &tag.CreatedAt, &tag.Text); err != nil {
			return fmt.Errorf("failed to scan tag row: %w", err)
		}
		byImage[tag.ImageID] = append(byImage[tag.ImageID], tag)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating tag rows: %w", err)
	}

	for i := range images {
		if tags, ok := byImage[images[i].ID]; ok {
			images[i].Tags = tags
		}
	}
	return nil
}

// SetImageGroup moves an image into a group, or back to the implicit "all"
// group when groupID is nil.
func (r *ImageRepository) SetImageGroup(ctx context.Context, imageID string, groupID *string) error {
	query := `UPDATE images SET group_id = $2 WHERE id = $1`
	var value any
	if groupID != nil {
		value = *groupID
	}
	result, err := r.db.ExecContext(ctx, query, imageID, value)
	if err != nil {
		return fmt.Errorf("failed to update image group: %w", err)
	}
	return requireRowAffected(result)
}

// SetImageDeleted toggles the recycle-bin flag.
func (r *ImageRepository) SetImageDeleted(ctx context.Context, imageID string, deleted bool) error {
	query := `UPDATE images SET is_deleted = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, imageID, deleted)
	if err != nil {
		return fmt.Errorf("failed to update image deletion flag: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteImage removes the row for good. Tags go with it via the cascade
// constraint.
func (r *ImageRepository) DeleteImage(ctx context.Context, imageID string) error {
	query := `DELETE FROM images WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, imageID)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return requireRowAffected(result)
}

// ClearRecycleBin hard-deletes every soft-deleted image for the user.
func (r *ImageRepository) ClearRecycleBin(ctx context.Context, userID string) error {
	query := `DELETE FROM images WHERE user_id = $1 AND is_deleted = TRUE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear recycle bin: %w", err)
	}
	return nil
}

// CountImagesForUser returns the user's non-deleted and recycle-bin image
// counts in one query, for the synthetic group-listing entries.
func (r *ImageRepository) CountImagesForUser(ctx context.Context, userID string) (active, deleted int, err error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE is_deleted = FALSE),
		       COUNT(*) FILTER (WHERE is_deleted = TRUE)
		FROM images
		WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&active, &deleted); err != nil {
		return 0, 0, fmt.Errorf("failed to count images: %w", err)
	}
	return active, deleted, nil
}

// GetImagesForExport streams back the user's non-deleted images including
// binary data, optionally narrowed to one group, for the zip export path.
func (r *ImageRepository) GetImagesForExport(ctx context.Context, userID, groupID string) ([]models.Image, error) {
	query := `
		SELECT id, user_id, group_id, created_at, type, is_deleted, data
		FROM images
		WHERE user_id = $1 AND is_deleted = FALSE
	`
	args := []any{userID}
	if groupID != "" {
		query += ` AND group_id = $2`
		args = append(args, groupID)
	}
	query += ` ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images for export: %w", err)
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		var image models.Image
		var groupID sql.NullString
		if err := rows.Scan(&image.ID, &image.UserID, &groupID, &image.CreatedAt, &image.Type, &image.IsDeleted, &image.Data); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		if groupID.Valid {
			image.GroupID = &groupID.String
		}
		images = append(images, image)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image rows: %w", err)
	}
	return images, nil
}

func requireRowAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
