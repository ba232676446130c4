package transport

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/config"
)

const (
	ProviderLog     = "log"
	ProviderSMTP    = "smtp"
	ProviderSES     = "ses"
	ProviderMailgun = "mailgun"
	ProviderHTTP    = "http"
)

// New builds a Dispatcher from MAIL_PROVIDER and SMS_PROVIDER.
func New(cfg *config.Config, log logrus.FieldLogger) (*Dispatcher, error) {
	mail, err := newMailSender(cfg, log)
	if err != nil {
		return nil, err
	}
	sms, err := newSMSSender(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		Mail:    mail,
		SMS:     sms,
		Timeout: cfg.TransportTimeout(),
		Logger:  log,
	}, nil
}

func newMailSender(cfg *config.Config, log logrus.FieldLogger) (MailSender, error) {
	switch cfg.MailProvider {
	case ProviderLog, "":
		return &LogTransport{Logger: log}, nil
	case ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, errors.New("SMTP_HOST is required for the smtp mail provider")
		}
		return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom), nil
	case ProviderSES:
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, errors.Wrap(err, "create aws session")
		}
		return NewSESTransport(sess, cfg.MailFrom), nil
	case ProviderMailgun:
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
			return nil, errors.New("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for the mailgun mail provider")
		}
		return NewMailgunTransport(mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey), cfg.MailFrom), nil
	default:
		return nil, errors.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}
}

func newSMSSender(cfg *config.Config, log logrus.FieldLogger) (SMSSender, error) {
	switch cfg.SMSProvider {
	case ProviderLog, "":
		return (&LogTransport{Logger: log}).SMS(), nil
	case ProviderHTTP:
		if cfg.SMSAPIURL == "" {
			return nil, errors.New("SMS_API_URL is required for the http sms provider")
		}
		return NewHTTPSMSTransport(cfg.SMSAPIURL, cfg.SMSSenderID, cfg.SMSAPIUser, cfg.SMSAPIPassword, log), nil
	default:
		return nil, errors.Errorf("unknown SMS_PROVIDER %q", cfg.SMSProvider)
	}
}
