package transport

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type MailSender interface {
	Send(ctx context.Context, msg model.MailMessage) error
}

type SMSSender interface {
	Send(ctx context.Context, msg model.SMSMessage) error
}

// Dispatcher routes rendered messages to the configured mail and SMS
// providers. Every call is bounded by Timeout and failures come back as
// *appErrors.TransportError.
type Dispatcher struct {
	Mail    MailSender
	SMS     SMSSender
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

func (d *Dispatcher) SendMail(ctx context.Context, msg model.MailMessage) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	if err := d.Mail.Send(ctx, msg); err != nil {
		return &appErrors.TransportError{Channel: string(model.ChannelMail), Address: msg.To, Err: err}
	}
	d.Logger.WithFields(logrus.Fields{"template": msg.TemplateKey, "to": msg.To}).Debug("mail handed off")
	return nil
}

func (d *Dispatcher) SendSMS(ctx context.Context, msg model.SMSMessage) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	if err := d.SMS.Send(ctx, msg); err != nil {
		return &appErrors.TransportError{Channel: string(model.ChannelSMS), Address: msg.To, Err: err}
	}
	d.Logger.WithFields(logrus.Fields{"template": msg.TemplateKey, "to": msg.To}).Debug("sms handed off")
	return nil
}

func (d *Dispatcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}
