package models

import "time"

type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ImageID   string    `json:"-"`
	CreatedAt time.Time `json:"-"`
	Text      string    `json:"text"`
}
