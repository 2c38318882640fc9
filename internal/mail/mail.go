// Package mail delivers one-time verification codes.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const codeSubject = "Your Registry Portal verification code"

// SendGridSender sends codes through the SendGrid v3 API.
type SendGridSender struct {
	client  *sendgrid.Client
	from    *sgmail.Email
	timeout time.Duration
	sandbox bool
}

// NewSendGridSender creates a sender for apiKey.
func NewSendGridSender(apiKey, fromName, fromAddress string, timeout time.Duration) *SendGridSender {
	return &SendGridSender{
		client:  sendgrid.NewSendClient(apiKey),
		from:    sgmail.NewEmail(fromName, fromAddress),
		timeout: timeout,
	}
}

// WithSandbox enables SendGrid sandbox mode, which validates but never delivers.
func (s *SendGridSender) WithSandbox() *SendGridSender {
	s.sandbox = true
	return s
}

// SendCode e-mails code to the given address.
func (s *SendGridSender) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg := BuildCodeMessage(s.from, to, code, ttl)
	if s.sandbox {
		settings := sgmail.NewMailSettings()
		settings.SetSandboxMode(sgmail.NewSetting(true))
		msg.SetMailSettings(settings)
	}

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// BuildCodeMessage renders the verification e-mail.
func BuildCodeMessage(from *sgmail.Email, to, code string, ttl time.Duration) *sgmail.SGMailV3 {
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	plain := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
	html := fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, minutes)
	return sgmail.NewSingleEmail(from, codeSubject, sgmail.NewEmail("", to), plain, html)
}

// LogSender writes codes to the log instead of sending them. It is used
// when no SendGrid key is configured.
type LogSender struct {
	Logger *slog.Logger
}

// SendCode logs the code.
func (l LogSender) SendCode(_ context.Context, to, code string, ttl time.Duration) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("mail delivery disabled, logging verification code",
		"to", to,
		"code", code,
		"expires_in", ttl.String(),
	)
	return nil
}
