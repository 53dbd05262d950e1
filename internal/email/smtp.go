package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers lifecycle notifications via a direct SMTP connection
// using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendProgressWarning(ctx context.Context, toEmail, companyName, deadline string) error {
	content, err := renderEmailTemplate("lead_progress_warning.html", progressWarningEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead-Schutz läuft ab",
			Heading: "Lead-Schutz läuft ab",
		},
		CompanyName: companyName,
		Deadline:    deadline,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectProgressWarningFmt, companyName), content)
}

func (s *SMTPSender) SendProtectionExpired(ctx context.Context, toEmail, companyName, previousOwner string) error {
	content, err := renderEmailTemplate("lead_protection_expired.html", protectionExpiredEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead-Schutz abgelaufen",
			Heading: "Lead-Schutz abgelaufen",
		},
		CompanyName:   companyName,
		PreviousOwner: previousOwner,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectProtectionExpiredFmt, companyName), content)
}

func (s *SMTPSender) SendReminder(ctx context.Context, toEmail, companyName string) error {
	content, err := renderEmailTemplate("lead_reminder.html", reminderEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead inaktiv",
			Heading: "Lead inaktiv",
		},
		CompanyName: companyName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectReminderFmt, companyName), content)
}
