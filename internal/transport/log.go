package transport

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

// LogTransport writes messages to the log instead of sending them. It is
// the default provider for both channels.
type LogTransport struct {
	Logger logrus.FieldLogger
}

func (t *LogTransport) Send(ctx context.Context, msg model.MailMessage) error {
	t.Logger.WithFields(logrus.Fields{
		"channel":  model.ChannelMail,
		"template": msg.TemplateKey,
		"to":       msg.To,
		"subject":  msg.Subject,
	}).Info(msg.Body)
	return nil
}

// SMS adapts LogTransport to SMSSender.
func (t *LogTransport) SMS() SMSSender {
	return logSMS{t}
}

type logSMS struct{ t *LogTransport }

func (l logSMS) Send(ctx context.Context, msg model.SMSMessage) error {
	l.t.Logger.WithFields(logrus.Fields{
		"channel":  model.ChannelSMS,
		"template": msg.TemplateKey,
		"to":       msg.To,
	}).Info(msg.Body)
	return nil
}
