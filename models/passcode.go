package models

import "time"

// Passcode is a one-time code emailed to a user to authorize a password
// reset. Rows are never mutated; expiry is computed from CreatedAt at read
// time, so an "expired" passcode is a logical state, not a deleted row.
type Passcode struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Content   string
}
