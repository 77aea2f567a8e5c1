// Package mail is the outbound email collaborator. The reset flow only
// depends on the Sender interface; the SendGrid implementation lives next
// to it.
package mail

import "context"

// Sender delivers a plain-text email to a single recipient.
type Sender interface {
	Send(ctx context.Context, toAddress, subject, body string) error
}
