package models

import "time"

type Group struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
}

// GroupSummary is the sidebar listing shape: a group plus its count of
// non-deleted images.
type GroupSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageNumber int    `json:"image_number"`
}
