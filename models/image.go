package models

import "time"

// Image holds the sticker binary alongside its metadata. Data is only
// populated by the single-image fetch path; list queries leave it nil.
type Image struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	GroupID   *string   `json:"group_id"` // nil = the implicit "all" group
	CreatedAt time.Time `json:"create_at"`
	Type      string    `json:"type"` // image subtype, e.g. "png", "gif"
	IsDeleted bool      `json:"is_deleted"`
	Data      []byte    `json:"-"`
	Tags      []Tag     `json:"tags"`
}
