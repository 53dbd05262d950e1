// Package email delivers lifecycle notifications over SMTP.
package email

import "context"

// Sender delivers the lead lifecycle notifications. Delivery is an external
// concern behind this interface so the worker can run with a no-op sender
// when SMTP is not configured.
type Sender interface {
	SendProgressWarning(ctx context.Context, toEmail, companyName, deadline string) error
	SendProtectionExpired(ctx context.Context, toEmail, companyName, previousOwner string) error
	SendReminder(ctx context.Context, toEmail, companyName string) error
}

// NoopSender drops all mail. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendProgressWarning(context.Context, string, string, string) error { return nil }
func (NoopSender) SendProtectionExpired(context.Context, string, string, string) error {
	return nil
}
func (NoopSender) SendReminder(context.Context, string, string) error { return nil }
