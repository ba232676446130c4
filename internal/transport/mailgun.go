package transport

import (
	"context"

	"github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type MailgunTransport struct {
	mg   mailgun.Mailgun
	from string
}

func NewMailgunTransport(mg mailgun.Mailgun, from string) *MailgunTransport {
	return &MailgunTransport{mg: mg, from: from}
}

func (t *MailgunTransport) Send(ctx context.Context, msg model.MailMessage) error {
	m := t.mg.NewMessage(t.from, msg.Subject, msg.Body, msg.To)
	if msg.TemplateKey != "" {
		if err := m.AddTag(msg.TemplateKey); err != nil {
			return errors.Wrap(err, "failed to add tag")
		}
	}

	_, _, err := t.mg.Send(ctx, m)
	return errors.Wrap(err, "failed to send message")
}
