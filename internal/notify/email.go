package notify

import (
	"context"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/umsys/user-management/shared/models"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// EmailTransport sends notices over SMTP. Without credentials it only logs
// what it would have sent.
type EmailTransport struct {
	sender     mailSender
	from       string
	adminEmail string
	logger     *slog.Logger
}

func NewEmailTransport(settings SMTPSettings, adminEmail string, logger *slog.Logger) *EmailTransport {
	t := &EmailTransport{
		from:       settings.From,
		adminEmail: adminEmail,
		logger:     logger.With("channel", models.ChannelEmail),
	}
	if settings.User == "" || settings.Password == "" {
		t.logger.Warn("SMTP credentials not set, e-mail delivery disabled")
		return t
	}
	t.sender = gomail.NewDialer(settings.Host, settings.Port, settings.User, settings.Password)
	return t
}

func (t *EmailTransport) Channel() models.Channel {
	return models.ChannelEmail
}

func (t *EmailTransport) Send(ctx context.Context, env Envelope) error {
	to := env.Email
	if env.Audience == AudienceAdmin {
		to = t.adminEmail
	}
	if to == "" {
		t.logger.Warn("no recipient address, skipping", "notificationId", env.NotificationID)
		return nil
	}
	if t.sender == nil {
		t.logger.Info("e-mail delivery disabled", "to", to, "subject", env.Subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", env.Subject)
	m.SetBody("text/plain", env.Text)
	if env.HTML != "" {
		m.AddAlternative("text/html", env.HTML)
	}

	if err := t.sender.DialAndSend(m); err != nil {
		return err
	}
	t.logger.Debug("e-mail sent", "to", to, "notificationId", env.NotificationID)
	return nil
}
