package models

import "time"

// ResetAttempt marks one password-reset submission. It carries no payload:
// its only purpose is rate limiting, so rows are written once per submission
// regardless of outcome and never touched again.
type ResetAttempt struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}
