package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"pricetracker/internal/domain"
)

// Mailer sends plain-text mail through a configured SMTP relay.
type Mailer struct {
	Config    domain.SMTPConfig
	Recipient string

	// swapped out in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns nil when server or recipient is missing, so wiring
// can treat mail as simply not configured.
func NewMailer(cfg domain.SMTPConfig, recipient string) *Mailer {
	if cfg.Server == "" || recipient == "" {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	return &Mailer{Config: cfg, Recipient: recipient, sendMail: smtp.SendMail}
}

func (m *Mailer) Send(ctx context.Context, subject, body string) error {
	if m == nil {
		return errors.New("mail disabled")
	}
	from := m.Config.Username
	if from == "" {
		from = "price-tracker@localhost"
	}
	var auth smtp.Auth
	if m.Config.Username != "" && m.Config.Password != "" {
		auth = smtp.PlainAuth("", m.Config.Username, m.Config.Password, m.Config.Server)
	}
	addr := fmt.Sprintf("%s:%d", m.Config.Server, m.Config.Port)
	return m.sendMail(addr, auth, from, []string{m.Recipient}, buildMessage(from, m.Recipient, subject, body))
}

func buildMessage(from, to, subject, body string) []byte {
	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n"
	return []byte(msg)
}
