package transport

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPTransport(host string, port int, username, password, from string) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send dials per message. gomail has no context support, so a cancelled ctx
// returns early and leaves the dial to finish in the background.
func (t *SMTPTransport) Send(ctx context.Context, msg model.MailMessage) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("X-Template-Key", msg.TemplateKey)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
